package planfile

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the plan source based on flags.
func Configured() Source {
	provider := lflag.String("plan-source", "files", "Plan source to use (available: files, mock)")

	var p struct{ Source }

	files := configuredFiles()

	lflag.Do(func() {
		switch *provider {
		case "files":
			if err := files.Validate(); err != nil {
				panic(fmt.Sprintf("plan file source validation failed: %v", err))
			}
			p.Source = files
		case "mock":
			p.Source = &Mock{}
		default:
			panic(fmt.Sprintf("unknown plan source: %s", *provider))
		}
	})

	return &p
}
