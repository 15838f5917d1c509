package commands

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	root := &cobra.Command{
		Use:   "gomeet",
		Short: "Ad-hoc screen sharing session coordinator",
		Long: `gomeet runs the coordinator for a single screen-share session:
participant registry, presenter arbitration, WebRTC signaling relay,
frame relay for polling viewers, chat, and capture settings.`,
	}

	root.AddCommand(serveCmd(), versionCmd())
	return root.Execute()
}
