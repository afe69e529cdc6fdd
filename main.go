package main

import (
	"github.com/davidrg-mx/clubagent/cmd"
)

func main() {
	cmd.Execute()
}
