package vybiumrecursion

import (
	"os"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
)

// LoadProgram reads a program image from disk
func LoadProgram(path string) ([]byte, error) {
	program, err := os.ReadFile(path)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageUnknown, "failed to read program", err)
	}
	if _, err := DecodeProgram(program); err != nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageUnknown, path, err)
	}
	return program, nil
}

// GetCycles returns the number of cycles the program runs for on stdin
func GetCycles(executor Executor, program []byte, stdin *Stdin) (uint64, error) {
	cycles, err := executor.Cycles(program, stdin)
	if err != nil {
		return 0, protocols.NewError(protocols.ErrProvingFailure, protocols.StageCore, "failed to count cycles", err)
	}
	return cycles, nil
}
