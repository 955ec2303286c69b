package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ticketops/reconcile-api/internal/audit"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

const cliActor = "cli"

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		filter := reconcile.ListFilter{Status: reconcile.Status(status), Limit: limit}
		if filter.Status != "" && !filter.Status.Valid() {
			return fmt.Errorf("unknown status %q", status)
		}

		recs, err := current.services.Imports.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if wantsJSON(cmd) {
			return printJSON(recs)
		}
		if len(recs) == 0 {
			pterm.Info.Println("No imports found")
			return nil
		}

		data := pterm.TableData{{"ID", "Status", "Source", "Type", "Rows", "Accepted", "Failed", "Created"}}
		for _, rec := range recs {
			data = append(data, []string{
				strconv.FormatInt(rec.ID, 10),
				string(rec.Status),
				rec.Src,
				string(rec.Meta.ImportType),
				strconv.Itoa(len(rec.Parsed.Rows)),
				strconv.Itoa(len(rec.Parsed.AcceptedIDs)),
				strconv.Itoa(len(rec.Parsed.FailedRows)),
				rec.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <import-id>",
	Short: "Show an import's summary and the classification accept would use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseImportID(args[0])
		if err != nil {
			return err
		}
		rec, err := current.services.Imports.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		detection := reconcile.Classify(rec)
		if wantsJSON(cmd) {
			return printJSON(map[string]any{"import": rec, "detection": detection})
		}

		pterm.DefaultSection.Printf("Import %d", rec.ID)
		pterm.Info.Printf("Status: %s\n", rec.Status)
		pterm.Info.Printf("Detected: %s (confidence %.2f, hits %v)\n", detection.Type, detection.Confidence, detection.Hits)
		s := rec.Parsed.Summary
		pterm.Info.Printf("Rows: %d  Qty: %.2f  Revenue: %.2f  Trucks: %d  Drivers: %d\n",
			s.RowCount, s.TotalQty, s.TotalRevenue, s.TruckCount, s.DriverCount)
		for _, failed := range rec.Parsed.FailedRows {
			pterm.Warning.Printf("row %d: %s\n", failed.Index, failed.Reason)
		}
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "Show the columns accept would write to for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cols, err := current.services.Introspector.Columns(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantsJSON(cmd) {
			return printJSON(cols)
		}
		if len(cols) == 0 {
			pterm.Warning.Printf("No columns found for %s in schema %s\n", args[0], current.cfg.SchemaName)
			return nil
		}
		data := pterm.TableData{{"Column", "Type", "Nullable"}}
		for _, col := range cols {
			data = append(data, []string{col.Name, col.DataType, strconv.FormatBool(col.Nullable)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <import-id>",
	Short: "Commit an import's rows to the delivery or service table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseImportID(args[0])
		if err != nil {
			return err
		}
		req := reconcile.AcceptRequest{ImportID: id}
		if cmd.Flags().Changed("rows") {
			req.SelectedRows, _ = cmd.Flags().GetIntSlice("rows")
			if req.SelectedRows == nil {
				req.SelectedRows = []int{}
			}
		}

		result, err := current.services.Imports.Accept(cmd.Context(), req)
		if err != nil {
			return err
		}
		logAudit(cmd, id, audit.ActionAccepted, map[string]any{
			"kind":     result.Kind,
			"inserted": result.Inserted(),
			"failed":   result.Failed(),
		})
		if wantsJSON(cmd) {
			return printJSON(result)
		}

		pterm.Success.Println(result.Message)
		for _, failed := range result.FailedRows {
			pterm.Warning.Printf("row %d: %s\n", failed.Index, failed.Reason)
		}
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <import-id>",
	Short: "Reject an import so it can no longer be accepted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseImportID(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		rec, err := current.services.Imports.Reject(cmd.Context(), id, reason)
		if err != nil {
			return err
		}
		logAudit(cmd, id, audit.ActionRejected, map[string]any{"reason": reason})
		if wantsJSON(cmd) {
			return printJSON(rec)
		}
		pterm.Success.Printf("Import %d rejected\n", id)
		return nil
	},
}

func init() {
	listCmd.Flags().String("status", "", "Only show imports in this status")
	listCmd.Flags().Int("limit", 20, "Maximum number of imports to show")
	acceptCmd.Flags().IntSlice("rows", nil, "Row indexes to accept (default: all rows)")
	rejectCmd.Flags().String("reason", "", "Reason recorded on the import")
}

func parseImportID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid import id %q", raw)
	}
	return id, nil
}

func logAudit(cmd *cobra.Command, id int64, action string, metadata map[string]any) {
	err := current.services.Audit.Log(cmd.Context(), audit.Entry{
		ImportID: id,
		Action:   action,
		Actor:    cliActor,
		Metadata: metadata,
	})
	if err != nil {
		pterm.Warning.Printf("audit log: %v\n", err)
	}
}
