package main

import (
	"context"
	"flag"
	"log"
	"os"

	"bookcrossing/internal/backend"
	"bookcrossing/internal/config"
	"bookcrossing/internal/core"
	"bookcrossing/internal/models"
)

type seedBook struct {
	title       string
	author      string
	description string
	genre       string
	shelf       string
}

var (
	genres = []string{"Fantastyka", "Klasyka", "Popularnonaukowa", "Kryminał", "Reportaż"}

	shelves = []core.NewShelf{
		{
			Name:        "Biblioteka Główna",
			Address:     "ul. Książkowa 1, Warszawa",
			Hours:       "pn-pt 8-20, sob 10-16",
			Description: "Regał przy wejściu do czytelni",
			Latitude:    52.2297,
			Longitude:   21.0122,
		},
		{
			Name:        "Kawiarnia Czytelnia",
			Address:     "ul. Floriańska 12, Kraków",
			Hours:       "codziennie 9-22",
			Description: "Półka obok lady",
			Latitude:    50.0647,
			Longitude:   19.9450,
		},
		{
			Name:        "Dworzec Wrocław Główny",
			Address:     "ul. Piłsudskiego 105, Wrocław",
			Hours:       "całodobowo",
			Description: "Hala główna, przy kasach",
			Latitude:    51.0983,
			Longitude:   17.0366,
		},
	}

	books = []seedBook{
		{
			title:       "Wiedźmin: Ostatnie życzenie",
			author:      "Andrzej Sapkowski",
			description: "Zbiór opowiadań o wiedźminie Geralcie z Rivii, łowcy potworów.",
			genre:       "Fantastyka",
			shelf:       "Biblioteka Główna",
		},
		{
			title:       "Zbrodnia i kara",
			author:      "Fiodor Dostojewski",
			description: "Psychologiczna powieść o studencie Rodionie Raskolnikowie.",
			genre:       "Klasyka",
			shelf:       "Kawiarnia Czytelnia",
		},
		{
			title:       "Sapiens: Od zwierząt do bogów",
			author:      "Yuval Noah Harari",
			description: "Historia ludzkości od czasów prehistorycznych po współczesność.",
			genre:       "Popularnonaukowa",
			shelf:       "Dworzec Wrocław Główny",
		},
		{
			title:       "Solaris",
			author:      "Stanisław Lem",
			description: "Powieść o kontakcie z obcą inteligencją oceanu planety Solaris.",
			genre:       "Fantastyka",
			shelf:       "Biblioteka Główna",
		},
		{
			title:       "Dune",
			author:      "Frank Herbert",
			description: "Saga o pustynnej planecie Arrakis i rodzie Atrydów.",
			genre:       "Fantastyka",
			shelf:       "Kawiarnia Czytelnia",
		},
		{
			title:       "Cesarz",
			author:      "Ryszard Kapuściński",
			description: "Reportaż o dworze Hajle Sellasje.",
			genre:       "Reportaż",
			shelf:       "Dworzec Wrocław Główny",
		},
	}
)

func main() {
	userID := flag.String("user", "seed", "użytkownik, który rejestruje i odkłada książki")
	flag.Parse()

	if _, err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Błąd wczytywania .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nieprawidłowa konfiguracja: %v", err)
	}

	ctx := context.Background()
	fbClient, err := backend.Firebase(ctx, cfg)
	if err != nil {
		log.Fatalf("Błąd inicjalizacji Firebase: %v", err)
	}
	if fbClient != nil {
		defer fbClient.Close()
	}

	s, err := backend.Open(ctx, cfg, fbClient)
	if err != nil {
		log.Fatalf("Błąd otwarcia magazynu: %v", err)
	}
	defer s.Close()

	engine := core.NewEngine(s, core.WithLogger(cfg.NewLogger(os.Stderr)))
	admin := &models.Caller{UserID: *userID, Role: models.RoleAdmin}

	log.Println("Dodawanie gatunków, półek i przykładowych książek...")

	genreIDs, err := seedGenres(ctx, engine, admin)
	if err != nil {
		log.Fatalf("Błąd dodawania gatunków: %v", err)
	}
	shelfIDs, err := seedShelves(ctx, engine, admin)
	if err != nil {
		log.Fatalf("Błąd dodawania półek: %v", err)
	}

	existing, err := engine.Registry().ListBooks(ctx, models.BookFilter{})
	if err != nil {
		log.Fatalf("Błąd pobierania książek: %v", err)
	}
	titles := make(map[string]bool, len(existing))
	for _, b := range existing {
		titles[b.Title] = true
	}

	added := 0
	for _, sb := range books {
		if titles[sb.title] {
			log.Printf("Pominięto (już istnieje): %s", sb.title)
			continue
		}
		book, err := engine.Create(ctx, admin, core.NewBook{
			Title:         sb.title,
			Description:   sb.description,
			NewAuthorName: sb.author,
			GenreIDs:      []string{genreIDs[sb.genre]},
		})
		if err != nil {
			log.Printf("Błąd dodawania książki %q: %v", sb.title, err)
			continue
		}
		if _, err := engine.Release(ctx, admin, book.ID, shelfIDs[sb.shelf]); err != nil {
			log.Printf("Błąd odkładania książki %q: %v", sb.title, err)
			continue
		}
		added++
		log.Printf("✓ Dodano: %s (ISBN: %s)", book.Title, book.ISBN)
	}

	log.Printf("Zakończono. Dodano %d z %d książek.", added, len(books))
}

// seedGenres dodaje brakujące gatunki i zwraca mapę nazwa -> ID
func seedGenres(ctx context.Context, engine *core.Engine, admin *models.Caller) (map[string]string, error) {
	current, err := engine.Catalog().ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(genres))
	for _, g := range current {
		ids[g.Name] = g.ID
	}
	for _, name := range genres {
		if _, ok := ids[name]; ok {
			continue
		}
		g, err := engine.Catalog().CreateGenre(ctx, admin, name)
		if err != nil {
			return nil, err
		}
		ids[name] = g.ID
	}
	return ids, nil
}

// seedShelves dodaje brakujące półki (po nazwie) i zwraca mapę nazwa -> ID
func seedShelves(ctx context.Context, engine *core.Engine, admin *models.Caller) (map[string]string, error) {
	current, err := engine.Shelves().ListShelves(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(shelves))
	for _, s := range current {
		ids[s.Name] = s.ID
	}
	for _, in := range shelves {
		if _, ok := ids[in.Name]; ok {
			continue
		}
		shelf, err := engine.Shelves().CreateShelf(ctx, admin, in)
		if err != nil {
			return nil, err
		}
		ids[in.Name] = shelf.ID
	}
	return ids, nil
}
