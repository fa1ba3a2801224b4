package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/notify"
)

var notifySubject string

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Send a test message through the configured channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		n := notify.FromConfig(cfg, logger)
		if n == nil {
			return fmt.Errorf("no notification channel configured (set smtp.* or telegram.*)")
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		body := fmt.Sprintf("Test message sent at %s.", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
		if err := n.Send(ctx, notifySubject, body, ""); err != nil {
			return fmt.Errorf("test notification failed: %w", err)
		}
		fmt.Printf("Sent %q via %s\n", notifySubject, n.Name())
		return nil
	},
}

func init() {
	testNotifyCmd.Flags().StringVarP(&notifySubject, "subject", "s", "ideascan test notification", "Message subject")
	rootCmd.AddCommand(testNotifyCmd)
}
