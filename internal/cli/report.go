package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seuros/kohort/internal/analytics"
	"github.com/seuros/kohort/internal/models"
)

var reportSections = []string{"kpis", "funnel", "cohorts", "ltv", "revenue"}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print dashboard aggregates",
	Long: `Compute the dashboard for a date range and print one or all of its
sections.

Examples:
  kohort report
  kohort report --range 90d --section funnel
  kohort report --section cohorts --format csv > cohorts.csv
  kohort report --format yaml`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	rangeFlag, _ := cmd.Flags().GetString("range")
	section, _ := cmd.Flags().GetString("section")
	format, _ := cmd.Flags().GetString("format")

	if err := checkReportFlags(section, format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rangeFlag == "" {
		rangeFlag = cfg.DefaultRange
	}
	rng, err := models.ParseDateRange(rangeFlag)
	if err != nil {
		return err
	}

	env, err := openEnvironment(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	dashboard, err := env.dashboards().Compute(cmd.Context(), rng)
	if err != nil {
		return err
	}
	return writeReport(os.Stdout, dashboard, section, format)
}

func checkReportFlags(section, format string) error {
	switch format {
	case "table", "json", "csv", "yaml":
	default:
		return fmt.Errorf("invalid format: %s (use table, json, csv, or yaml)", format)
	}
	if section == "all" {
		return nil
	}
	for _, s := range reportSections {
		if s == section {
			return nil
		}
	}
	return fmt.Errorf("invalid section: %s (use all, %s)", section, strings.Join(reportSections, ", "))
}

func writeReport(w io.Writer, d *analytics.Dashboard, section, format string) error {
	sections := reportSections
	if section != "all" {
		sections = []string{section}
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(reportDocument(d, sections), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		// Round trip through JSON so keys match the HTTP API.
		data, err := json.Marshal(reportDocument(d, sections))
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case "csv":
		return outputReportCSV(w, reportTables(d, sections))
	default:
		return outputReportTable(w, d, reportTables(d, sections))
	}
}

func reportDocument(d *analytics.Dashboard, sections []string) map[string]any {
	doc := map[string]any{"range": d.Range, "generatedAt": d.GeneratedAt}
	for _, s := range sections {
		switch s {
		case "kpis":
			doc["kpis"] = d.KPIs
			doc["quality"] = d.Quality
		case "funnel":
			doc["funnel"] = d.Funnel
			doc["transitions"] = d.Transitions
		case "cohorts":
			doc["cohorts"] = d.Cohorts
		case "ltv":
			doc["ltv"] = d.LTV
		case "revenue":
			doc["revenueExpense"] = d.RevenueExpense
		}
	}
	return doc
}

// reportTable is one section rendered as rows of text.
type reportTable struct {
	Title  string
	Header []string
	Rows   [][]string
}

func reportTables(d *analytics.Dashboard, sections []string) []reportTable {
	tables := make([]reportTable, 0, len(sections))
	for _, s := range sections {
		switch s {
		case "kpis":
			tables = append(tables, kpiTable(d.KPIs, d.Quality))
		case "funnel":
			tables = append(tables, funnelTable(d.Funnel))
		case "cohorts":
			tables = append(tables, cohortTable(d.Cohorts))
		case "ltv":
			tables = append(tables, ltvTable(d.LTV))
		case "revenue":
			tables = append(tables, revenueTable(d.RevenueExpense))
		}
	}
	return tables
}

func kpiTable(k analytics.KPIs, q analytics.Quality) reportTable {
	return reportTable{
		Title:  "KPIs",
		Header: []string{"METRIC", "VALUE"},
		Rows: [][]string{
			{"Total customers", strconv.Itoa(k.TotalCustomers)},
			{"Active customers", strconv.Itoa(k.ActiveCustomers)},
			{"Churned customers", strconv.Itoa(k.ChurnedCustomers)},
			{"New customers", strconv.Itoa(k.NewCustomers)},
			{"Revenue", k.Revenue.StringFixed(2)},
			{"Expenses", k.Expenses.StringFixed(2)},
			{"Net revenue", k.NetRevenue.StringFixed(2)},
			{"Average ticket", k.AverageTicket.StringFixed(2)},
			{"CAC", k.CAC.StringFixed(2)},
			{"ROI", pct(k.ROI)},
			{"Average LTV", k.AverageLTV.StringFixed(2)},
			{"Churn share", pct(k.ChurnShare)},
			{"Churn rate", pct(k.ChurnRate)},
			{"Monthly churn rate", pct(k.MonthlyChurnRate)},
			{"Conversion rate", pct(k.ConversionRate)},
			{"Payment success rate", pct(k.PaymentSuccessRate)},
			{"Average lifespan (days)", strconv.Itoa(k.AverageLifespanDays)},
			{"Data quality", strconv.FormatFloat(q.Score, 'f', 1, 64)},
		},
	}
}

func funnelTable(funnel []analytics.FunnelStage) reportTable {
	t := reportTable{
		Title:  "Funnel",
		Header: []string{"STAGE", "DEALS", "OF FIRST", "DROP-OFF", "DROP-OFF %"},
	}
	for _, s := range funnel {
		t.Rows = append(t.Rows, []string{
			s.Stage,
			strconv.Itoa(s.Value),
			pct(s.Percentage),
			strconv.Itoa(s.DropOff),
			pct(s.DropOffPct),
		})
	}
	return t
}

func cohortTable(cohorts []analytics.Cohort) reportTable {
	width := 0
	for _, c := range cohorts {
		width = max(width, len(c.Retention))
	}
	t := reportTable{Title: "Cohorts", Header: []string{"COHORT", "SIZE"}}
	for m := range width {
		t.Header = append(t.Header, "M"+strconv.Itoa(m))
	}
	for _, c := range cohorts {
		row := []string{c.Cohort, strconv.Itoa(c.Size)}
		for m := range width {
			if m < len(c.Retention) {
				row = append(row, strconv.FormatFloat(c.Retention[m], 'f', 1, 64))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func ltvTable(ltv analytics.LTVSummary) reportTable {
	t := reportTable{
		Title:  "LTV (average " + ltv.Average.StringFixed(2) + ")",
		Header: []string{"BUCKET", "CUSTOMERS"},
	}
	for _, b := range ltv.Buckets {
		t.Rows = append(t.Rows, []string{b.Label, strconv.Itoa(b.Count)})
	}
	return t
}

func revenueTable(flows []analytics.MonthlyFlow) reportTable {
	t := reportTable{
		Title:  "Revenue vs expenses",
		Header: []string{"MONTH", "REVENUE", "EXPENSES", "NET"},
	}
	for _, f := range flows {
		t.Rows = append(t.Rows, []string{
			f.Month,
			f.Revenue.StringFixed(2),
			f.Expenses.StringFixed(2),
			f.Net.StringFixed(2),
		})
	}
	return t
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func outputReportTable(out io.Writer, d *analytics.Dashboard, tables []reportTable) error {
	_, _ = fmt.Fprintf(out, "Range: %s (generated %s)\n", d.Range, d.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, t := range tables {
		_, _ = fmt.Fprintf(out, "\n%s\n", t.Title)
		if len(t.Rows) == 0 {
			_, _ = fmt.Fprintln(out, "  (no data)")
			continue
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, strings.Join(t.Header, "\t"))
		rule := make([]string, len(t.Header))
		for i, h := range t.Header {
			rule[i] = strings.Repeat("-", len(h))
		}
		_, _ = fmt.Fprintln(w, strings.Join(rule, "\t"))
		for _, row := range t.Rows {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = strings.NewReplacer(" %", "_pct", " ", "_", "-", "_")

// outputReportCSV writes each table as its own header plus rows, separated
// by an empty line.
func outputReportCSV(out io.Writer, tables []reportTable) error {
	for i, t := range tables {
		if i > 0 {
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
		}
		w := csv.NewWriter(out)
		header := make([]string, len(t.Header))
		for j, h := range t.Header {
			header[j] = strings.ToLower(csvHeader.Replace(h))
		}
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		if err := w.WriteAll(t.Rows); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}

func init() {
	reportCmd.Flags().StringP("range", "r", "", "Date range (today, 7d, 30d, 90d, 12m, all); defaults to default_range")
	reportCmd.Flags().StringP("section", "s", "all", "Section to print (all, kpis, funnel, cohorts, ltv, revenue)")
	reportCmd.Flags().StringP("format", "f", "table", "Output format (table, json, csv, yaml)")
	RootCmd.AddCommand(reportCmd)
}
