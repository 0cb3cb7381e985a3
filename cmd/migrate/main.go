// Applies versioned SQL migrations to the BigQuery audit dataset and verifies
// the tables the ingestion pipeline writes to.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finsight/internal/logger"
)

var (
	projectID     = flag.String("project", "", "GCP project ID (required)")
	datasetID     = flag.String("dataset", "finsight", "BigQuery dataset ID for the ingestion audit trail")
	appliedBy     = flag.String("applied-by", "migrate", "recorded as the applier in schema_migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "path to the migrations directory")
)

// auditTables are the tables the ingestion pipeline depends on. Every run
// checks they exist after migrations are applied.
var auditTables = []string{"documents", "ingest_runs", "model_outputs"}

var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// migration is one numbered SQL file. sql carries the project and dataset
// placeholders already substituted; the checksum covers the file as written,
// so it is stable across environments.
type migration struct {
	version  int
	name     string
	sql      string
	checksum string
}

func main() {
	flag.Parse()

	log := logger.ForComponent(logger.New(), "migrate")

	if *projectID == "" {
		log.Fatal().Msg("-project flag is required")
	}

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := run(ctx, client, log); err != nil {
		log.Fatal().Err(err).Msg("Migration run failed")
	}
}

func run(ctx context.Context, client *bigquery.Client, log zerolog.Logger) error {
	if err := ensureMigrationsTable(ctx, client); err != nil {
		return fmt.Errorf("ensuring schema_migrations: %w", err)
	}

	pending, err := loadMigrations(*migrationsDir, log)
	if err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, client)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range pending {
		if applied[m.version] {
			log.Debug().Int("version", m.version).Str("name", m.name).Msg("Already applied")
			continue
		}

		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applying migration")

		if err := runQuery(ctx, client.Query(m.sql)); err != nil {
			return fmt.Errorf("applying %04d_%s: %w", m.version, m.name, err)
		}
		if err := recordApplied(ctx, client, m); err != nil {
			return fmt.Errorf("recording %04d_%s: %w", m.version, m.name, err)
		}
		count++
	}

	if count == 0 {
		log.Info().Msg("Audit dataset is up to date")
	} else {
		log.Info().Int("applied", count).Msg("Migrations applied")
	}

	return verifyAuditTables(ctx, client, log)
}

func ensureMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, *projectID, *datasetID))
	return runQuery(ctx, q)
}

// loadMigrations reads the numbered SQL files, substitutes the project and
// dataset placeholders and returns them in version order. Files that do not
// match the 0001_name.sql pattern are skipped.
func loadMigrations(dir string, log zerolog.Logger) ([]migration, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Running from cmd/migrate instead of the repo root.
		fallback := filepath.Join("../..", dir)
		if _, err := os.Stat(fallback); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
		dir = fallback
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			log.Debug().Str("file", entry.Name()).Msg("Skipping non-migration file")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("parsing version of %s: %w", entry.Name(), err)
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", *projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", *datasetID)

		migrations = append(migrations, migration{
			version:  version,
			name:     matches[2],
			sql:      sql,
			checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}

func appliedVersions(ctx context.Context, client *bigquery.Client) (map[int]bool, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT version FROM `%s.%s.schema_migrations`", *projectID, *datasetID,
	))

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied[int(row.Version)] = true
	}

	return applied, nil
}

func recordApplied(ctx context.Context, client *bigquery.Client, m migration) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, *projectID, *datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.version},
		{Name: "name", Value: m.name},
		{Name: "checksum", Value: m.checksum},
		{Name: "applied_by", Value: *appliedBy},
	}
	return runQuery(ctx, q)
}

// verifyAuditTables fails the run when any table the pipeline writes to is
// missing, so a broken migration surfaces here rather than on the first
// ingest.
func verifyAuditTables(ctx context.Context, client *bigquery.Client, log zerolog.Logger) error {
	dataset := client.Dataset(*datasetID)
	for _, table := range auditTables {
		if _, err := dataset.Table(table).Metadata(ctx); err != nil {
			return fmt.Errorf("audit table %s.%s not usable: %w", *datasetID, table, err)
		}
	}
	log.Info().Strs("tables", auditTables).Msg("Audit tables verified")
	return nil
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
