package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/cascade/procdef"
)

// BatchCmd groups batch management subcommands.
var BatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit, inspect and cancel bulk-operation batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var batchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		eng, err := openEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		batches, err := eng.batches.List(ctx)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("No live batches")
			return nil
		}

		for _, b := range batches {
			fmt.Printf("%s  type=%s size=%d jobs_per_seed=%d invocations_per_job=%d tenant=%s\n",
				b.ID, b.Type, b.Size, b.JobsPerSeed, b.InvocationsPerJob, b.TenantID)
		}
		return nil
	},
}

var batchCancelCmd = &cobra.Command{
	Use:   "cancel <batch-id>",
	Short: "Cancel a live batch, removing all of its pending jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cascade, _ := cmd.Flags().GetBool("cascade")

		eng, err := openEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.batches.Cancel(ctx, args[0], cascade); err != nil {
			return err
		}
		fmt.Printf("Cancelled batch %s\n", args[0])
		return nil
	},
}

var batchSuspendInstancesCmd = &cobra.Command{
	Use:   "suspend-instances",
	Short: "Submit a batch suspending process instances by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ids, _ := cmd.Flags().GetString("ids")
		tenant, _ := cmd.Flags().GetString("tenant")

		instanceIDs := splitIDs(ids)

		eng, err := openEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		b, err := procdef.SubmitInstanceSuspension(ctx, eng.batches, instanceIDs, true, tenant)
		if err != nil {
			return err
		}
		fmt.Printf("Submitted batch %s (%d instances)\n", b.ID, b.Size)
		return nil
	},
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func init() {
	batchCancelCmd.Flags().Bool("cascade", false, "Also purge the batch's history")
	batchSuspendInstancesCmd.Flags().String("ids", "", "Comma-separated process instance ids")
	batchSuspendInstancesCmd.Flags().String("tenant", "", "Tenant id to scope the batch to")

	BatchCmd.AddCommand(batchLsCmd)
	BatchCmd.AddCommand(batchCancelCmd)
	BatchCmd.AddCommand(batchSuspendInstancesCmd)
}
