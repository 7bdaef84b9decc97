package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agrilink/pricewatch/internal/model"
)

var subsCmd = &cobra.Command{
	Use:   "subs",
	Short: "Manage price alert subscriptions",
	Long:  "Commands for listing, adding, and removing alert subscriptions.",
}

// -- subs list --

var subsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert subscriptions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		subs, err := st.ListSubscriptions(ctx)
		if err != nil {
			return eris.Wrap(err, "subs list")
		}
		if len(subs) == 0 {
			fmt.Fprintln(os.Stderr, "No subscriptions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tCROP\tREGION\tSPEC\tTRIGGER\tTHRESHOLD")
		for _, sub := range subs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
				sub.ID, sub.UserID, sub.CropName, sub.Region,
				sub.Specification, sub.Trigger, sub.Threshold)
		}
		return w.Flush()
	},
}

// -- subs add --

var subsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alert subscription",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		user, _ := cmd.Flags().GetString("user")
		crop, _ := cmd.Flags().GetString("crop")
		region, _ := cmd.Flags().GetString("region")
		spec, _ := cmd.Flags().GetString("spec")
		trigger, _ := cmd.Flags().GetString("trigger")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		if user == "" || crop == "" {
			return eris.New("--user and --crop are required")
		}
		switch model.TriggerType(trigger) {
		case model.TriggerAbove, model.TriggerBelow, model.TriggerChanged:
		default:
			return eris.Errorf("invalid --trigger %q, want above, below, or changed", trigger)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		id, err := st.AddSubscription(ctx, model.AlertSubscription{
			UserID:        user,
			CropName:      crop,
			Region:        region,
			Specification: spec,
			Threshold:     threshold,
			Trigger:       model.TriggerType(trigger),
		})
		if err != nil {
			return eris.Wrap(err, "subs add")
		}
		fmt.Printf("Added subscription %d.\n", id)
		return nil
	},
}

// -- subs remove --

var subsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an alert subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid subscription id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.RemoveSubscription(ctx, id); err != nil {
			return eris.Wrap(err, "subs remove")
		}
		fmt.Printf("Removed subscription %d.\n", id)
		return nil
	},
}

func init() {
	subsAddCmd.Flags().String("user", "", "user ID owning the subscription")
	subsAddCmd.Flags().String("crop", "", "crop name to watch (prefix match)")
	subsAddCmd.Flags().String("region", "", "restrict to one region (default any)")
	subsAddCmd.Flags().String("spec", "", "restrict to one specification (default any)")
	subsAddCmd.Flags().String("trigger", "changed", "trigger type: above, below, or changed")
	subsAddCmd.Flags().Float64("threshold", 0, "price threshold for above/below triggers")

	subsCmd.AddCommand(subsListCmd)
	subsCmd.AddCommand(subsAddCmd)
	subsCmd.AddCommand(subsRemoveCmd)
	rootCmd.AddCommand(subsCmd)
}
