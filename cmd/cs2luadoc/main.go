package main

import (
	"os"

	"github.com/dejo1307/cs2luadoc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
