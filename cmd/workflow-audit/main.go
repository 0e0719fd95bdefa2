package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/damoang/recipe-cms/internal/config"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/migration"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/internal/service"
	pkglogger "github.com/damoang/recipe-cms/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "config file path (default configs/config.<APP_ENV>.yaml)")
	ownerType := flag.String("type", string(domain.OwnerTypePost), "owner type to audit")
	ownerID := flag.Uint64("id", 0, "audit a single owner id (0 = all)")
	fix := flag.Bool("fix", false, "repair detected issues")
	migrate := flag.Bool("migrate", false, "run schema migration before auditing")
	batchSize := flag.Int("batch-size", 500, "owners per batch")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv()
	pkglogger.InitStructured(config.AppEnv())
	log := pkglogger.WithComponent("workflow-audit")

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get underlying DB")
	}
	defer sqlDB.Close()

	if *migrate {
		if err := migration.Run(db); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}

	integrity := service.NewIntegrityService(repository.NewStore(db))
	ctx := context.Background()
	typ := domain.OwnerType(strings.TrimSpace(*ownerType))

	if *ownerID != 0 {
		report, err := integrity.Audit(ctx, domain.OwnerRef{Type: typ, ID: *ownerID}, *fix)
		if err != nil {
			log.Fatal().Err(err).Msg("audit failed")
		}
		printReport(report)
		if report.Err() != nil {
			os.Exit(1)
		}
		return
	}

	summary, err := integrity.AuditAll(ctx, typ, *fix, *batchSize, func(r *service.IntegrityReport) {
		if r.HasIssues() {
			printReport(r)
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("audit failed")
	}

	fmt.Printf("\nscanned=%d with_issues=%d issues=%d repaired=%d\n",
		summary.Scanned, summary.WithIssues, summary.Issues, summary.Repaired)
	// 수정하지 않은 문제가 남아 있으면 실패 코드
	if summary.Issues > summary.Repaired {
		os.Exit(1)
	}
}

func printReport(r *service.IntegrityReport) {
	if !r.HasIssues() {
		fmt.Printf("%s: ok\n", r.Owner)
		return
	}
	fmt.Printf("%s:\n", r.Owner)
	for _, issue := range r.Issues {
		state := "open"
		if issue.Repaired {
			state = "repaired"
		}
		fmt.Printf("  [%s] %-30s %s\n", state, issue.Code, issue.Message)
	}
}
