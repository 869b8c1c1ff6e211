package main

import (
	"github.com/bizlinkhq/wa-engine/cmd"
)

func main() {
	cmd.Execute()
}
