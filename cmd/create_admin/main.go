// Komenda create_admin nadaje (lub odbiera) rolę administratora kontu Firebase.
//
//	go run ./cmd/create_admin -email admin@bookcrossing.pl
//	go run ./cmd/create_admin -email nowy@bookcrossing.pl -create -password sekret123
//	go run ./cmd/create_admin -email byly@bookcrossing.pl -revoke
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"bookcrossing/internal/config"
	"bookcrossing/internal/firebase"
)

func main() {
	email := flag.String("email", "", "adres e-mail konta")
	create := flag.Bool("create", false, "utwórz konto, jeśli nie istnieje")
	password := flag.String("password", "", "hasło dla nowego konta (z -create)")
	name := flag.String("name", "Administrator", "nazwa wyświetlana nowego konta")
	revoke := flag.Bool("revoke", false, "odbierz rolę administratora")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Wczytaj zmienne środowiskowe
	if found, err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Błąd wczytywania .env: %v", err)
	} else if !found {
		log.Println("Brak pliku .env - używam zmiennych systemowych")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nieprawidłowa konfiguracja: %v", err)
	}

	ctx := context.Background()
	client, err := firebase.InitFirebase(ctx, cfg.Firebase, false)
	if err != nil {
		log.Fatalf("Błąd inicjalizacji Firebase: %v", err)
	}
	defer client.Close()

	uid, err := client.UserByEmail(ctx, *email)
	if err != nil {
		if !*create {
			log.Fatalf("%v (użyj -create, aby założyć konto)", err)
		}
		if *password == "" {
			log.Fatal("Podaj -password dla nowego konta")
		}
		uid, err = client.CreateUser(ctx, *email, *password, *name)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("✓ Utworzono użytkownika Auth: %s (UID: %s)\n", *email, uid)
	}

	if err := client.SetAdmin(ctx, uid, !*revoke); err != nil {
		log.Fatalf("%v", err)
	}

	if *revoke {
		fmt.Printf("✓ Odebrano rolę administratora: %s\n", *email)
		return
	}
	fmt.Printf("✓ Nadano rolę administratora: %s (UID: %s)\n", *email, uid)
	fmt.Println("Nowy token ID (po ponownym zalogowaniu) zawiera claim admin=true.")
}
