// Package all registers all command providers.
package all

import (
	_ "github.com/duetlab/dash.go/pkg/cli/cmds/board"
)
