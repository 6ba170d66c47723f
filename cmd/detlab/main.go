package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/cli"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

func handleCmdError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	switch {
	case errors.Is(err, model.ErrConfig):
		fmt.Fprintln(os.Stderr, "  - Detector names are case-sensitive; run 'detlab config show' to list them")
		fmt.Fprintln(os.Stderr, "  - Check isotope ranges and analysis settings in your config file")
	case errors.Is(err, model.ErrShapeMismatch):
		fmt.Fprintln(os.Stderr, "  - Background and measurement must come from the same detector and MCA settings")
	case errors.Is(err, model.ErrFitFailure):
		fmt.Fprintln(os.Stderr, "  - Widen or move the channel range of that line, or rerun with --on-fit-failure skip")
	case errors.Is(err, model.ErrFormat):
		fmt.Fprintln(os.Stderr, "  - Only Spe and mca exports are supported")
	}
}

func main() {
	if err := cli.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}
