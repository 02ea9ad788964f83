package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures statement logging. Writes to AuditTables are
// logged at info level whatever Level says, so every status flip and invoice
// insert leaves a line carrying the request and consumption ids.
type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
	AuditTables          []string
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
		AuditTables:          []string{"consumptions", "invoices", "tier_usages"},
	}
}

// GormLogger routes gorm output through the service logger, enriched with the
// correlation fields of the statement's context.
type GormLogger struct {
	base                 *zap.Logger
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoreRecordNotFound bool
	audit                map[string]struct{}
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	audit := make(map[string]struct{}, len(cfg.AuditTables))
	for _, table := range cfg.AuditTables {
		audit[strings.ToLower(table)] = struct{}{}
	}
	return &GormLogger{
		base:                 base.Named("gorm"),
		level:                cfg.Level,
		slowThreshold:        cfg.SlowThreshold,
		ignoreRecordNotFound: cfg.IgnoreRecordNotFound,
		audit:                audit,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	var fields []zap.Field
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	WithContext(ctx, l.base).Log(level, msg, fields...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	stmt := describeSQL(sql)

	var level zapcore.Level
	switch {
	case err != nil && l.level >= gormlogger.Error && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !l.ignoreRecordNotFound):
		level = zapcore.ErrorLevel
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case stmt.write() && l.audited(stmt.table):
		level = zapcore.InfoLevel
	case l.level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", stmt.operation),
		zap.String("table", stmt.table),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil && level == zapcore.ErrorLevel {
		fields = append(fields, zap.Error(err))
	}
	WithContext(ctx, l.base).Log(level, "gorm.query", fields...)
}

// ParamsFilter keeps bound values out of the logged SQL.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) audited(table string) bool {
	_, ok := l.audit[table]
	return ok
}

type sqlStatement struct {
	operation string
	table     string
}

func (s sqlStatement) write() bool {
	switch s.operation {
	case "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

// describeSQL finds the leading verb and the table it targets. CTEs are
// skipped so "WITH ... UPDATE consumptions" reports the update.
func describeSQL(sql string) sqlStatement {
	tokens := strings.Fields(sql)
	stmt := sqlStatement{operation: "UNKNOWN"}
	depth := 0
	for i, raw := range tokens {
		depth += strings.Count(raw, "(") - strings.Count(raw, ")")
		token := strings.ToUpper(strings.Trim(raw, "();,"))
		if stmt.operation == "UNKNOWN" {
			if depth > 0 {
				continue
			}
			switch token {
			case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
				stmt.operation = token
				if token == "UPDATE" && i+1 < len(tokens) {
					stmt.table = tableName(tokens[i+1])
					return stmt
				}
			}
			continue
		}
		if (token == "FROM" || token == "INTO") && i+1 < len(tokens) {
			stmt.table = tableName(tokens[i+1])
			return stmt
		}
	}
	return stmt
}

func tableName(token string) string {
	token = strings.Trim(token, "`\"();,")
	if dot := strings.LastIndex(token, "."); dot >= 0 {
		token = token[dot+1:]
	}
	return strings.ToLower(strings.Trim(token, "`\""))
}

var _ gormlogger.Interface = (*GormLogger)(nil)
