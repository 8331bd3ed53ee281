package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"droidscope/internal/jsoncodec"
	"droidscope/internal/settings"
	"droidscope/pkg/types"
)

func newSettingsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the persisted delivery settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(root)
			if err != nil {
				return err
			}
			return printSettings(cmd, store.Get())
		},
	}

	var webhookURL, privateServer string
	set := &cobra.Command{
		Use:     "set",
		Short:   "Update settings; only the given flags change",
		Example: "  droidscope settings set --webhook-url https://discord.com/api/webhooks/ID/TOKEN",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("webhook-url") && !cmd.Flags().Changed("private-server-url") {
				return fmt.Errorf("nothing to set: pass --webhook-url and/or --private-server-url")
			}
			store, err := openSettings(root)
			if err != nil {
				return err
			}
			v := store.Get()
			if cmd.Flags().Changed("webhook-url") {
				v.WebhookURL = webhookURL
			}
			if cmd.Flags().Changed("private-server-url") {
				v.PrivateServerURL = privateServer
			}
			if err := store.Set(v); err != nil {
				return err
			}
			return printSettings(cmd, store.Get())
		},
	}
	set.Flags().StringVar(&webhookURL, "webhook-url", "", "Discord incoming-webhook URL (empty clears it)")
	set.Flags().StringVar(&privateServer, "private-server-url", "", "Private server link shown on biome notifications")

	cmd.AddCommand(get, set)
	return cmd
}

func openSettings(root *rootOptions) (*settings.Store, error) {
	cfg, err := root.load(nil)
	if err != nil {
		return nil, err
	}
	return settings.Open(cfg.SettingsPath)
}

func printSettings(cmd *cobra.Command, v settings.Values) error {
	b, err := jsoncodec.MarshalIndent(types.SettingsResponse{
		WebhookURL:       v.WebhookURL,
		PrivateServerURL: v.PrivateServerURL,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	return err
}
