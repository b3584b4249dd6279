package main

import (
	"flag"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/config"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/migrations"
)

func main() {
	dbUri := flag.String("db_uri", "", "Database URI")
	rollback := flag.Bool("rollback", false, "Revert the last applied migration")
	flag.Parse()

	if *dbUri == "" {
		log.Fatalf("Missing --db_uri arg")
	}

	dsn, err := config.PostgresDsn(*dbUri)
	if err != nil {
		log.Fatalf("invalid --db_uri: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	if *rollback {
		if err := migrations.RollbackLast(db); err != nil {
			log.Fatal(err)
		}
		log.Println("rollback completed successfully")
		return
	}

	if err := migrations.Migrate(db); err != nil {
		log.Fatal(err)
	}

	log.Println("migration completed successfully")
}
