package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"routinely/internal/config"
	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"
	"routinely/internal/security"
	"routinely/internal/service"
)

func main() {
	// Define subcommands
	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	repairCmd := flag.NewFlagSet("repair", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)

	// Verify flags
	verifyChild := verifyCmd.String("child", "", "Only verify this child (default: all children)")

	// Repair flags
	repairYes := repairCmd.Bool("yes", false, "Skip the confirmation prompt")

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: ledger_YYYYMMDD_HHMMSS.json)")
	exportChildren := exportCmd.String("child", "", "Comma separated child IDs (default: all children)")

	// Token flags
	tokenUser := tokenCmd.String("user", "", "User ID to issue the token for (required)")
	tokenRole := tokenCmd.String("role", models.RoleParent, "Role claim: parent or professional")
	tokenTTL := tokenCmd.Duration("ttl", time.Hour, "Token lifetime")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if os.Args[1] == "token" {
		tokenCmd.Parse(os.Args[2:])
		if *tokenUser == "" {
			fmt.Println("Error: -user flag is required")
			tokenCmd.PrintDefaults()
			os.Exit(1)
		}
		handleToken(cfg, *tokenUser, *tokenRole, *tokenTTL)
		return
	}

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	childRepo := repository.NewChildRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	balances := service.NewBalanceService(db, childRepo, pointsRepo)

	switch os.Args[1] {
	case "verify":
		verifyCmd.Parse(os.Args[2:])
		if !handleVerify(ctx, balances, childRepo, *verifyChild) {
			os.Exit(2)
		}

	case "repair":
		repairCmd.Parse(os.Args[2:])
		handleRepair(ctx, balances, *repairYes)

	case "export":
		exportCmd.Parse(os.Args[2:])
		exporter := service.NewExportService(childRepo, pointsRepo, cfg.DatabaseType)
		handleExport(ctx, exporter, *exportOutput, splitIDs(*exportChildren))

	default:
		printUsage()
		os.Exit(1)
	}
}

// handleVerify reports ledger chain problems and balance drift. It returns
// false when anything is wrong.
func handleVerify(ctx context.Context, balances *service.BalanceService, childRepo *repository.ChildRepository, childID string) bool {
	ids := []string{childID}
	if childID == "" {
		var err error
		ids, err = childRepo.ListChildIDs(ctx)
		if err != nil {
			log.Fatalf("Failed to list children: %v", err)
		}
	}

	healthy := true
	for _, id := range ids {
		issues, err := balances.VerifyLedger(ctx, id)
		if err != nil {
			log.Fatalf("Failed to verify ledger for child %s: %v", id, err)
		}
		for _, issue := range issues {
			healthy = false
			fmt.Printf("%s  seq %d: %s\n", id, issue.Sequence, issue.Message)
		}

		report, err := balances.Reconcile(ctx, id, false)
		if err != nil {
			log.Fatalf("Failed to reconcile child %s: %v", id, err)
		}
		if !report.InSync() {
			healthy = false
			fmt.Printf("%s  cached balance %d, ledger sum %d (drift %d)\n", id, report.Cached, report.Recomputed, report.Drift)
		}
	}

	log.Printf("Verified %d children", len(ids))
	if healthy {
		log.Println("All ledgers consistent")
	}
	return healthy
}

func handleRepair(ctx context.Context, balances *service.BalanceService, skipConfirm bool) {
	if !skipConfirm {
		fmt.Print("This will overwrite cached balances from the ledger. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Repair cancelled")
			return
		}
	}

	reports, err := balances.ReconcileAll(ctx, true)
	if err != nil {
		log.Fatalf("Repair failed: %v", err)
	}

	repaired := 0
	for _, report := range reports {
		if report.Repaired {
			repaired++
		}
	}
	log.Printf("Repair complete! %d of %d balances corrected", repaired, len(reports))
}

func handleExport(ctx context.Context, exporter *service.ExportService, outputPath string, childIDs []string) {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("ledger_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}

	log.Printf("Exporting ledger to: %s", outputPath)
	if err := exporter.Export(ctx, file, childIDs...); err != nil {
		file.Close()
		log.Fatalf("Export failed: %v", err)
	}
	if err := file.Close(); err != nil {
		log.Fatalf("Failed to close output file: %v", err)
	}

	// Get file size
	fileInfo, _ := os.Stat(outputPath)
	log.Printf("Export complete! File size: %.2f KB", float64(fileInfo.Size())/1024)
}

// handleToken prints a signed bearer token, for local testing against the API
func handleToken(cfg *config.Config, userID, role string, ttl time.Duration) {
	tokens := security.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	token, err := tokens.Issue(models.Caller{UserID: userID, Role: role}, ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printUsage() {
	fmt.Println("Routinely Ledger Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ledger verify [-child ID]")
	fmt.Println("  ledger repair [-yes]")
	fmt.Println("  ledger export [-output FILE] [-child ID,ID]")
	fmt.Println("  ledger token -user ID [-role parent|professional] [-ttl 1h]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Check every child's ledger chain and cached balance")
	fmt.Println("  ledger verify")
	fmt.Println()
	fmt.Println("  # Rewrite drifted balances from the ledger")
	fmt.Println("  ledger repair -yes")
	fmt.Println()
	fmt.Println("  # Dump one child's ledger")
	fmt.Println("  ledger export -output exports/sam.json -child 4c1f...")
}
