package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	publishNamespace string
	publishID        int64
	publishTarget    string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Simulate a release against a running notifyhubd instance",
	Long: `publish posts to a running notifyhubd's /admin/publish endpoint,
bumping a namespace's notification id and releasing any long-poll parked
on it. Use this to drive the "admin publishes a new release" scenario
against cmd/configsyncd without standing up a full Config Service.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishNamespace, "namespace", "application", "namespace to bump")
	publishCmd.Flags().Int64Var(&publishID, "id", 0, "new notification id")
	publishCmd.Flags().StringVar(&publishTarget, "target", "http://localhost:8080", "notifyhubd base URL")
	rootCmd.AddCommand(publishCmd)
}

type publishBody struct {
	NamespaceName  string           `json:"namespaceName"`
	NotificationID int64            `json:"notificationId"`
	Messages       map[string]int64 `json:"messages"`
}

func runPublish(_ *cobra.Command, _ []string) error {
	body, err := json.Marshal(publishBody{
		NamespaceName:  publishNamespace,
		NotificationID: publishID,
		Messages:       map[string]int64{publishNamespace: publishID},
	})
	if err != nil {
		return fmt.Errorf("notifyhubd: encode publish request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(publishTarget+"/admin/publish", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifyhubd: publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("notifyhubd: publish request returned %s", resp.Status)
	}
	fmt.Printf("published %s -> %d\n", publishNamespace, publishID)
	return nil
}
