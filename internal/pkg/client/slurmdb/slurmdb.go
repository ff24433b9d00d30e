package slurmdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"fern/config"
	"fern/internal/pkg/client/slurm/models"
	"fern/internal/pkg/hostlist"
)

// Client wraps a read-only GORM connection to the Slurm accounting database.
type Client struct {
	DB          *gorm.DB
	ClusterName string
	logger      *slog.Logger
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New creates a read-only GORM Client configured from config.Slurmdb.
func New(cfg config.Slurmdb, logger *slog.Logger) (*Client, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("build dsn", "dsn", dsn)

	gcfg := &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}

	// Tune the underlying connection pool
	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if d := parseDuration(cfg.ConnMaxLifetime); d > 0 {
			sqlDB.SetConnMaxLifetime(d)
		}
		// Proactive connectivity check with timeout to avoid hanging on unreachable DB
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, err
		}
	}

	// Enforce read-only at ORM layer
	enforceReadOnly(db)

	return &Client{DB: db, ClusterName: cfg.ClusterName, logger: logger}, nil
}

// buildDSN constructs a DSN string without importing the mysql driver package.
// Format: user:pass@tcp(host:port)/dbname?param=value
func buildDSN(cfg config.Slurmdb) (string, error) {
	creds := cfg.User
	if cfg.Password != "" {
		creds = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
	}

	addr := fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	dbname := cfg.Database

	params := make([]string, 0, 8)
	if cfg.Charset != "" {
		params = append(params, fmt.Sprintf("charset=%s", cfg.Charset))
	}
	if cfg.ParseTime {
		params = append(params, "parseTime=true")
	} else {
		params = append(params, "parseTime=false")
	}
	if cfg.Loc != "" {
		params = append(params, fmt.Sprintf("loc=%s", url.QueryEscape(cfg.Loc)))
	}
	if cfg.TLS != "" {
		params = append(params, fmt.Sprintf("tls=%s", cfg.TLS))
	}
	// Set conservative timeouts to prevent hangs on connect/read/write
	// See https://github.com/go-sql-driver/mysql#dsn-data-source-name
	params = append(params, "timeout=5s")
	params = append(params, "readTimeout=5s")
	params = append(params, "writeTimeout=5s")

	dsn := fmt.Sprintf("%s@%s/%s", creds, addr, dbname)
	if len(params) > 0 {
		dsn = dsn + "?" + joinParams(params)
	}
	return dsn, nil
}

// parseDuration returns 0 on empty or invalid duration strings.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// joinParams joins DSN parameters with '&'.
func joinParams(params []string) string {
	if len(params) == 0 {
		return ""
	}
	out := params[0]
	for i := 1; i < len(params); i++ {
		out += "&" + params[i]
	}
	return out
}

// Package-level default Client for convenience wiring.
var defaultClient *Client

// SetDefault sets the package-level default SlurmDB Client.
func SetDefault(c *Client) { defaultClient = c }

// Default returns the package-level default SlurmDB Client.
func Default() *Client { return defaultClient }

// enforceReadOnly installs GORM callbacks that reject write operations and non-read raw SQL.
func enforceReadOnly(db *gorm.DB) {
	block := func(tx *gorm.DB) {
		tx.AddError(errors.New("slurmdb Client is read-only"))
	}
	_ = db.Callback().Create().Before("gorm:create").Register("fern:readonly_create", block)
	_ = db.Callback().Update().Before("gorm:update").Register("fern:readonly_update", block)
	_ = db.Callback().Delete().Before("gorm:delete").Register("fern:readonly_delete", block)

	_ = db.Callback().Raw().Before("gorm:raw").Register("fern:readonly_raw", func(tx *gorm.DB) {
		sql := strings.TrimSpace(tx.Statement.SQL.String())
		up := strings.ToUpper(sql)
		if strings.HasPrefix(up, "SELECT") || strings.HasPrefix(up, "SHOW") || strings.HasPrefix(up, "DESCRIBE") || strings.HasPrefix(up, "EXPLAIN") {
			return
		}
		tx.AddError(errors.New("read-only: raw SQL must be SELECT/SHOW/DESCRIBE/EXPLAIN"))
	})
}

// jobRow is the subset of <ClusterName>_job_table columns the tallies need.
type jobRow struct {
	IDJob     int64  `gorm:"column:id_job"`
	IDUser    int64  `gorm:"column:id_user"`
	Partition string `gorm:"column:partition"`
	NodeList  string `gorm:"column:nodelist"`
	State     int    `gorm:"column:state"`
	TimeStart int64  `gorm:"column:time_start"`
	TimeEnd   int64  `gorm:"column:time_end"`
}

// Slurm job state codes as stored in the accounting database.
var jobStateNames = map[int]string{
	0: "PENDING",
	1: "RUNNING",
	2: "SUSPENDED",
	3: "COMPLETED",
	4: "CANCELLED",
	5: "FAILED",
	6: "TIMEOUT",
	7: "NODE_FAIL",
}

func jobStateName(state int) string {
	if name, ok := jobStateNames[state]; ok {
		return name
	}
	return "UNKNOWN"
}

// jobFromRow converts an accounting row into a models.Job, expanding the
// compressed nodelist. Rows without any usable node assignment return nil.
func jobFromRow(row jobRow) *models.Job {
	nodes := hostlist.Expand(row.NodeList)
	if len(nodes) == 0 {
		return nil
	}
	return &models.Job{
		ID:        strconv.FormatInt(row.IDJob, 10),
		State:     jobStateName(row.State),
		UID:       int(row.IDUser),
		Partition: row.Partition,
		Nodes:     nodes,
	}
}

// GetJobsSince returns jobs from <ClusterName>_job_table that started and were
// still on nodes at or after the given time: started rows whose end time is
// either unset (still running) or no earlier than since.
func (c *Client) GetJobsSince(ctx context.Context, since time.Time) (models.Jobs, error) {
	if c == nil || c.DB == nil {
		return nil, fmt.Errorf("nil slurmdb Client")
	}
	if strings.TrimSpace(c.ClusterName) == "" {
		return nil, fmt.Errorf("cluster name is empty in slurmdb Client")
	}
	table := fmt.Sprintf("%s_job_table", c.ClusterName)

	var rows []jobRow
	if err := c.DB.WithContext(ctx).
		Table(table).
		Select("id_job", "id_user", "`partition`", "nodelist", "state", "time_start", "time_end").
		Where("time_start > 0 AND (time_end = 0 OR time_end >= ?)", since.Unix()).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	jobs := make(models.Jobs, 0, len(rows))
	for _, row := range rows {
		if j := jobFromRow(row); j != nil {
			jobs = append(jobs, *j)
		}
	}
	return jobs, nil
}
