package output_test

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/planner"
	"github.com/kesokaj/brew-lag/internal/store"
)

// Example showing how to render a plan table
func ExampleRenderPlanTable() {
	rows := []planner.Row{
		{
			Package:   "curl",
			Installed: "8.9.1",
			Target:    "8.9.0",
			Action:    store.ActionDowngrade,
		},
		{
			Package:   "openssl@3",
			Installed: "3.3.0",
			Target:    "3.3.1",
			Action:    store.ActionSyncUp,
			Moved:     true,
		},
		{
			Package:   "zlib",
			Installed: "1.3.1",
			Target:    "1.3.1",
			Action:    store.ActionOK,
		},
	}

	table := output.RenderPlanTable(rows)
	fmt.Println(table)
}

// Example showing how to drive the phase bar across pipeline phases
func ExamplePhaseBar() {
	packages := []string{"curl", "jq", "openssl@3"}

	bar := output.NewPhaseBar()
	bar.StartPhase("mining history", len(packages))
	for i, pkg := range packages {
		// Mine the package...
		bar.Update(i+1, pkg)
	}
	bar.FinishPhase()

	bar.StartPhase("reading dependencies", len(packages))
	for i, pkg := range packages {
		bar.Update(i+1, pkg)
	}
	bar.FinishPhase()
}

// Example showing how to use a spinner around a git call
func ExampleSpinner() {
	spinner := output.NewSpinner("Resolving catalog head")
	spinner.Start()

	// Wait on git...

	spinner.StopWithMessage("Catalog at 0123456789ab")
}
