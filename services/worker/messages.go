package worker

import (
	"time"

	"sjsage522/pricewatch/internal/scanner"
)

// ProductMessage is published once per newly found product
type ProductMessage struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Price    string    `json:"price"`
	Currency string    `json:"currency,omitempty"`
	URL      string    `json:"url"`
	FoundAt  time.Time `json:"found_at"`
}

// SummaryMessage reports a pass that found something or hit errors
type SummaryMessage struct {
	ProductsChecked   int       `json:"products_checked"`
	MatchesFound      int       `json:"matches_found"`
	CategoriesScanned int       `json:"categories_scanned"`
	DurationMs        int64     `json:"duration_ms"`
	Errors            []string  `json:"errors,omitempty"`
	Fatal             string    `json:"fatal,omitempty"`
	FinishedAt        time.Time `json:"finished_at"`
}

func newProductMessage(p scanner.Product, now time.Time) ProductMessage {
	return ProductMessage{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.Price.Amount.StringFixed(2),
		Currency: p.Price.CurrencySymbol,
		URL:      p.URL,
		FoundAt:  now,
	}
}

func newSummaryMessage(r *scanner.Result, fatal error, now time.Time) SummaryMessage {
	msg := SummaryMessage{
		ProductsChecked:   r.ProductsChecked,
		MatchesFound:      len(r.Matches),
		CategoriesScanned: r.CategoriesScanned,
		DurationMs:        r.DurationMs(),
		FinishedAt:        now,
	}
	for _, err := range r.Errors {
		msg.Errors = append(msg.Errors, err.Error())
	}
	if fatal != nil {
		msg.Fatal = fatal.Error()
	}
	return msg
}
