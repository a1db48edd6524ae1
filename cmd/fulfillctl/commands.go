package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mealdash-next/internal/service"

	"github.com/spf13/cobra"
)

func capacityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Inspect or re-evaluate kitchen capacity",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current operating state",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			state, err := c.CapacityService.GetState(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Accepting orders: %v\n", state.IsOpen)
			fmt.Printf("Auto close:       %v\n", state.AutoCloseEnabled)
			fmt.Printf("Max active:       %d (reopen below %d)\n", state.MaxActiveOrders, service.ReopenThreshold(state.MaxActiveOrders))
			if state.LastChangedAt != nil {
				fmt.Printf("Last change:      %s (%s)\n", state.LastChangedAt.Format(time.RFC3339), state.LastChangeReason)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "evaluate",
		Short: "Recount active orders and open or close the kitchen",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			result, err := c.CapacityService.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Action: %s\n", result.Action)
			fmt.Printf("Active orders: %d / %d (reopen below %d)\n", result.ActiveOrders, result.Threshold, result.ReopenBelow)
			fmt.Printf("Accepting orders: %v\n", result.IsOpen)
			return nil
		},
	})

	return cmd
}

func hoursCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Operating hours tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report whether the kitchen should be open right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			decision, err := c.OperatingHoursService.ShouldBeOpenNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Should be open: %v (%s)\n", decision.ShouldBeOpen, decision.Reason)
			fmt.Printf("Timezone:       %s\n", decision.Timezone)
			if decision.TodayHours != nil {
				fmt.Printf("Today:          %s-%s\n", decision.TodayHours.Open, decision.TodayHours.Close)
			}
			return nil
		},
	})
	return cmd
}

func courierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courier",
		Short: "Courier dispatch tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "assign [order-id]",
		Short: "Assign the best available courier to an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			result, err := c.AssignmentService.Assign(cmd.Context(), orderID, "cli")
			if err != nil {
				return err
			}
			fmt.Printf("Assigned courier #%d %s (score %.3f, %d candidates)\n",
				result.Courier.ID, result.Courier.Name, result.Score, result.CandidatesEvaluated)
			return nil
		},
	})
	return cmd
}

func printJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printjobs",
		Short: "Receipt print queue tools",
	}
	retry := &cobra.Command{
		Use:   "retry",
		Short: "Reset failed print jobs and resubmit them",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			count, err := c.PrintService.RetryFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("Resubmitted %d print jobs\n", count)
			return nil
		},
	}
	retry.Flags().IntP("limit", "l", 50, "maximum jobs to resubmit")
	cmd.AddCommand(retry)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Referral commission reports",
	}
	commissions := &cobra.Command{
		Use:   "commissions",
		Short: "Export the commission ledger to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := reportInputFromFlags(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.ReportService.Summary(cmd.Context(), input)
			if err != nil {
				return err
			}
			for _, row := range report.Referrers {
				fmt.Printf("  %-24s orders=%-5d new_customers=%-5d commission=%s\n",
					row.ReferrerName, row.OrderCount, row.NewCustomers, row.CommissionTotal)
			}

			file, err := os.Create(out)
			if err != nil {
				return err
			}
			defer file.Close()
			if err := c.ReportService.ExportCommissions(cmd.Context(), input, file); err != nil {
				return err
			}
			fmt.Printf("Written %s\n", out)
			return nil
		},
	}
	commissions.Flags().String("from", "", "start date (2006-01-02 or RFC3339)")
	commissions.Flags().String("to", "", "end date (2006-01-02 or RFC3339)")
	commissions.Flags().Uint("referrer", 0, "only this referrer id")
	commissions.Flags().StringP("out", "o", "commissions.xlsx", "output file")
	cmd.AddCommand(commissions)
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Back-office account tools",
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account bound to a builtin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			super, _ := cmd.Flags().GetBool("super")
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()
			admin, err := c.AuthService.CreateAdmin(cmd.Context(), service.CreateAdminInput{
				Username: username,
				Password: password,
				Role:     role,
				IsSuper:  super,
			})
			if err != nil {
				return err
			}
			if err := c.AuthzService.AssignBuiltinRole(admin.ID, role); err != nil {
				return err
			}
			fmt.Printf("Created admin #%d %s (%s)\n", admin.ID, admin.Username, role)
			return nil
		},
	}
	create.Flags().StringP("username", "u", "", "login name")
	create.Flags().StringP("password", "p", "", "initial password")
	create.Flags().StringP("role", "r", "manager", "manager, kitchen, dispatcher or finance")
	create.Flags().Bool("super", false, "bypass role checks")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)
	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func reportInputFromFlags(cmd *cobra.Command) (service.CommissionReportInput, error) {
	var input service.CommissionReportInput
	referrer, _ := cmd.Flags().GetUint("referrer")
	input.ReferrerID = referrer
	for _, name := range []string{"from", "to"} {
		raw, _ := cmd.Flags().GetString(name)
		parsed, err := parseDate(raw)
		if err != nil {
			return input, fmt.Errorf("--%s: %w", name, err)
		}
		if name == "from" {
			input.From = parsed
		} else {
			input.To = parsed
		}
	}
	return input, nil
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
