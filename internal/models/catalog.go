package models

import "time"

// Author reprezentuje autora książki
type Author struct {
	ID          string    `json:"id" firestore:"id"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description" firestore:"description"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
}

// Genre reprezentuje gatunek literacki
type Genre struct {
	ID   string `json:"id" firestore:"id"`
	Name string `json:"name" firestore:"name"`
}

// SafeShelf to publicznie dostępne miejsce, w którym zostawia się książki
type SafeShelf struct {
	ID          string    `json:"id" firestore:"id"`
	Name        string    `json:"name" firestore:"name"`
	Address     string    `json:"address" firestore:"address"`
	Hours       string    `json:"hours" firestore:"hours"`
	Description string    `json:"description" firestore:"description"`
	Latitude    float64   `json:"latitude" firestore:"latitude"`
	Longitude   float64   `json:"longitude" firestore:"longitude"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
}

// Review to opinia o książce (tylko dopisywana)
type Review struct {
	ID        string    `json:"id" firestore:"id"`
	BookID    string    `json:"book_id" firestore:"book_id"`
	UserID    string    `json:"user_id" firestore:"user_id"`
	Text      string    `json:"text" firestore:"text"`
	Rating    int       `json:"rating" firestore:"rating"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
}
