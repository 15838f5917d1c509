package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/tomaslejdung/gomeet/pkg/capture"
	"github.com/tomaslejdung/gomeet/pkg/server"
	"github.com/tomaslejdung/gomeet/pkg/session"
	"github.com/tomaslejdung/gomeet/pkg/settings"
	"github.com/tomaslejdung/gomeet/pkg/signal"
	"github.com/tomaslejdung/gomeet/pkg/tui"
)

func serveCmd() *cobra.Command {
	var (
		port      int
		fps       string
		quality   string
		turn      string
		turnUser  string
		turnPass  string
		dashboard bool
		present   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := settings.Load()
			if err != nil {
				log.Printf("Could not load saved settings: %v", err)
			}
			initial := prefs.Capture
			if cmd.Flags().Changed("fps") {
				initial.FPS = capture.ParseFPSFlag(fps)
			}
			if cmd.Flags().Changed("quality") {
				initial.Quality = capture.ParseQualityFlag(quality)
			}
			if cmd.Flags().Changed("port") {
				prefs.Port = port
			}

			sess := session.New(
				session.WithLimits(capture.SupportedLimits()),
				session.WithSettings(initial),
			)
			defer sess.Close()

			defer func() {
				prefs.Capture = sess.Settings()
				if err := settings.Save(prefs); err != nil {
					log.Printf("Could not save settings: %v", err)
				}
			}()

			ice := signal.ICEConfig{
				TURNServer: turn,
				TURNUser:   turnUser,
				TURNPass:   turnPass,
			}
			hub := signal.NewHub(sess, ice.Servers())
			defer hub.Close()

			if present {
				p, err := sess.Join("", "Test Pattern")
				if err != nil {
					return err
				}
				pub := capture.NewPublisher(sess, capture.NewTestPattern(), p.ID)
				go pub.Run()
				defer pub.Stop()
				if err := sess.StartPresenting(p.ID); err != nil {
					return err
				}
				log.Printf("Built-in presenter running as %s", p.Name)
			}

			addr := fmt.Sprintf(":%d", prefs.Port)
			srv := server.New(sess, hub)

			if dashboard {
				errc := make(chan error, 1)
				go func() { errc <- srv.Start(addr) }()
				if err := tui.Run(sess, addr); err != nil {
					return err
				}
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}

			return srv.Start(addr)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP and signaling port")
	cmd.Flags().StringVar(&fps, "fps", "30", "capture framerate (number or preset)")
	cmd.Flags().StringVar(&quality, "quality", "high", "JPEG quality (1-100 or low/medium/high/max)")
	cmd.Flags().StringVar(&turn, "turn", "", "TURN server URL (e.g. turn:relay.example.com:3478)")
	cmd.Flags().StringVar(&turnUser, "turn-user", "", "TURN username")
	cmd.Flags().StringVar(&turnPass, "turn-pass", "", "TURN password")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "show the terminal dashboard")
	cmd.Flags().BoolVar(&present, "present", false, "run the built-in test-pattern presenter")

	return cmd
}
