package inverter

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the inverter provider based on flags.
func Configured() Provider {
	provider := lflag.String("inverter-provider", "fox", "Inverter cloud provider to use (available: fox, mock)")

	var p struct{ Provider }

	fox := configuredFox()

	lflag.Do(func() {
		switch *provider {
		case "fox":
			if err := fox.Validate(); err != nil {
				panic(fmt.Sprintf("fox validation failed: %v", err))
			}
			p.Provider = fox
		case "mock":
			p.Provider = &Mock{}
		default:
			panic(fmt.Sprintf("unknown inverter provider: %s", *provider))
		}
	})

	return &p
}
