package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/connector/stdin"

	// Register connector implementations.
	_ "github.com/hejijunhao/droidlog/internal/connector/exec"
	_ "github.com/hejijunhao/droidlog/internal/connector/file"
	_ "github.com/hejijunhao/droidlog/internal/connector/follow"
	_ "github.com/hejijunhao/droidlog/internal/connector/relay"
)

// newConnector resolves provider from the registry. The stdin connector
// reads the command's input so it can be redirected.
func newConnector(cmd *cobra.Command, provider string) (connector.Connector, error) {
	ctor, err := connector.Get(provider)
	if err != nil {
		return nil, err
	}
	conn := ctor()
	if s, ok := conn.(*stdin.Connector); ok {
		s.Reader = cmd.InOrStdin()
	}
	return conn, nil
}
