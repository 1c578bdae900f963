package main

import (
	"github.com/ColonelBlimp/handmorse/cmd"
	"github.com/ColonelBlimp/handmorse/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
