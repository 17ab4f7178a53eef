package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/seuros/kohort/internal/config"
	"github.com/seuros/kohort/internal/database"
	"github.com/seuros/kohort/internal/records"
)

// minPostgresMajor is the oldest server the schema is tested against.
const minPostgresMajor = 13

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the Kohort installation",
	Long: `Run health checks on the Kohort installation.

Checks performed:
  - Data directory writable
  - Seed files readable
  - Database connection
  - PostgreSQL version ≥13
  - Database migrations completed
  - Tables exist
  - Redis reachable

Database checks are skipped in memory mode, and the Redis check when no
REDIS_URL is configured.

Example:
  kohort doctor
  kohort doctor --json`,
	RunE: runDoctor,
}

type CheckResult struct {
	Name       string `json:"name"`
	Pass       bool   `json:"pass"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

var requiredTables = database.CountedTables

func checkDataDirectory(cfg *config.Config) CheckResult {
	testFile := filepath.Join(cfg.DataDir, ".kohort-write-test")
	err := os.WriteFile(testFile, []byte("test"), 0644)
	if err != nil {
		return CheckResult{
			Name:       "Data Directory Writable",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Ensure DATA_DIR exists and has write permissions",
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{Name: "Data Directory Writable", Pass: true}
}

func checkSeedFiles(cfg *config.Config) CheckResult {
	present := 0
	for _, name := range records.SeedFiles {
		if _, err := os.Stat(filepath.Join(cfg.DataDir, name)); err == nil {
			present++
		}
	}

	mem, err := records.LoadDir(cfg.DataDir)
	if err != nil {
		return CheckResult{
			Name:       "Seed Files",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Fix or remove the malformed file; each seed file must hold a JSON array",
		}
	}
	customers, err := mem.Customers(context.Background())
	if err != nil {
		return CheckResult{Name: "Seed Files", Pass: false, Error: err.Error()}
	}

	return CheckResult{
		Name:    "Seed Files",
		Pass:    true,
		Details: fmt.Sprintf("%d/%d files, %d customers", present, len(records.SeedFiles), len(customers)),
	}
}

func checkDatabaseConnection(db *sql.DB) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL and ensure PostgreSQL is running",
		}
	}
	return CheckResult{Name: "Database Connection", Pass: true}
}

func checkPostgreSQLVersion(db *sql.DB) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, err := database.ServerVersion(ctx, db)
	if err != nil {
		return CheckResult{Name: "PostgreSQL Version", Pass: false, Error: err.Error()}
	}

	// e.g. "17.1 (Debian 17.1-1)"
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return CheckResult{Name: "PostgreSQL Version", Pass: false, Error: "empty server version"}
	}
	number := fields[0]
	major, _ := strconv.Atoi(strings.Split(number, ".")[0])

	if major < minPostgresMajor {
		return CheckResult{
			Name:       "PostgreSQL Version",
			Pass:       false,
			Error:      fmt.Sprintf("Version %s found, need ≥%d", number, minPostgresMajor),
			Suggestion: fmt.Sprintf("Upgrade PostgreSQL to version %d or higher", minPostgresMajor),
		}
	}
	return CheckResult{Name: "PostgreSQL Version", Pass: true, Details: number}
}

func checkMigrations(cfg *config.Config) CheckResult {
	latest, err := database.LatestMigrationVersion()
	if err != nil {
		return CheckResult{Name: "Database Migrations", Pass: false, Error: err.Error()}
	}
	version, dirty, err := database.GetMigrationVersion(cfg.DatabaseURL)
	return migrationResult(version, dirty, err, latest)
}

func migrationResult(version uint, dirty bool, err error, latest uint) CheckResult {
	if err != nil {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Run migrations with: kohort migrate up",
		}
	}

	if version != latest {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      fmt.Sprintf("Migration version %d, expected %d", version, latest),
			Suggestion: "Run migrations with: kohort migrate up",
		}
	}

	if dirty {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      "Migration state is dirty",
			Suggestion: "Fix dirty migration state, may need manual intervention",
		}
	}

	return CheckResult{Name: "Database Migrations", Pass: true, Details: fmt.Sprintf("v%d", version)}
}

func checkTables(db *sql.DB) CheckResult {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)
	`

	rows, err := db.Query(query, pq.Array(requiredTables))
	if err != nil {
		return CheckResult{Name: "Tables", Pass: false, Error: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		_ = rows.Scan(&name)
		found[name] = true
	}

	var missing []string
	for _, table := range requiredTables {
		if !found[table] {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:       "Tables",
			Pass:       false,
			Error:      fmt.Sprintf("Missing tables: %s", strings.Join(missing, ", ")),
			Suggestion: "Run migrations with: kohort migrate up",
		}
	}

	details := fmt.Sprintf("%d/%d tables found", len(requiredTables), len(requiredTables))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stats, err := database.TableStats(ctx, db); err == nil {
		counts := make([]string, 0, len(stats))
		for _, s := range stats {
			counts = append(counts, fmt.Sprintf("%s %d", s.Table, s.Rows))
		}
		details += " (" + strings.Join(counts, ", ") + ")"
	}

	return CheckResult{Name: "Tables", Pass: true, Details: details}
}

func checkRedis(cfg *config.Config) CheckResult {
	if cfg.RedisURL == "" {
		return CheckResult{Name: "Redis", Pass: true, Details: "not configured, uploads use a local or advisory lock"}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return CheckResult{
			Name:       "Redis",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "REDIS_URL must look like redis://host:6379/0",
		}
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return CheckResult{
			Name:       "Redis",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Start Redis or unset REDIS_URL",
		}
	}
	return CheckResult{Name: "Redis", Pass: true, Details: opts.Addr}
}

func runDoctorChecks(cfg *config.Config) []CheckResult {
	results := []CheckResult{
		checkDataDirectory(cfg),
		checkSeedFiles(cfg),
	}

	if cfg.DatabaseURL == "" {
		results = append(results, CheckResult{Name: "Database", Pass: true, Details: "memory mode"})
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			results = append(results, CheckResult{
				Name:       "Database Connection",
				Pass:       false,
				Error:      err.Error(),
				Suggestion: "Verify DATABASE_URL is valid",
			})
		} else {
			defer func() { _ = db.Close() }()

			conn := checkDatabaseConnection(db)
			results = append(results, conn)
			if conn.Pass {
				results = append(results, checkPostgreSQLVersion(db))
				results = append(results, checkMigrations(cfg))
				results = append(results, checkTables(db))
			}
		}
	}

	return append(results, checkRedis(cfg))
}

func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("✗ Configuration Error: %v\n", err)
		return err
	}

	results := runDoctorChecks(cfg)

	if jsonOutput {
		outputDoctorJSON(os.Stdout, results)
	} else {
		outputDoctorHuman(os.Stdout, results)
	}

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

func countFailed(results []CheckResult) int {
	failed := 0
	for _, r := range results {
		if !r.Pass {
			failed++
		}
	}
	return failed
}

func outputDoctorHuman(w io.Writer, results []CheckResult) {
	_, _ = fmt.Fprintln(w, "\n🏥 Kohort Health Check")

	for _, r := range results {
		icon := "✓"
		if !r.Pass {
			icon = "✗"
		}

		_, _ = fmt.Fprintf(w, "%s %s", icon, r.Name)
		if r.Details != "" {
			_, _ = fmt.Fprintf(w, " (%s)", r.Details)
		}
		_, _ = fmt.Fprintln(w)

		if !r.Pass {
			if r.Error != "" {
				_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
			}
			if r.Suggestion != "" {
				_, _ = fmt.Fprintf(w, "  💡 %s\n", r.Suggestion)
			}
		}
	}

	passed := len(results) - countFailed(results)
	_, _ = fmt.Fprintf(w, "\n%d/%d checks passed\n\n", passed, len(results))
}

func outputDoctorJSON(w io.Writer, results []CheckResult) {
	data, _ := json.MarshalIndent(results, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
	RootCmd.AddCommand(doctorCmd)
}
