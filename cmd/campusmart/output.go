package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"campusmart/market"
)

func (a *app) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(a.out, format, args...)
	return err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printCategories(categories []market.Category) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tICON")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Icon)
	}
	return w.Flush()
}

func (a *app) printItems(items []market.Item) error {
	if a.jsonMode {
		return a.printJSON(items)
	}
	if len(items) == 0 {
		return a.printf("No items.\n")
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCATEGORY\tSTATUS\tCREATED")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, truncate(item.Title, 40), item.Price.StringFixed(2), item.Category, item.Status,
			item.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (a *app) printItemDetail(item market.Item, seller market.SellerInfo, canManage bool) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", item.ID)
	fmt.Fprintf(w, "Title:\t%s\n", item.Title)
	fmt.Fprintf(w, "Price:\t%s\n", item.Price.StringFixed(2))
	fmt.Fprintf(w, "Category:\t%s\n", item.Category)
	fmt.Fprintf(w, "Status:\t%s\n", item.Status)
	if item.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", item.Description)
	}
	for _, image := range item.Images {
		fmt.Fprintf(w, "Image:\t%s\n", image)
	}
	fmt.Fprintf(w, "Seller:\t%s\n", seller.Name)
	fmt.Fprintf(w, "Contact:\t%s\n", seller.Contact)
	if seller.Email != "" {
		fmt.Fprintf(w, "Email:\t%s\n", seller.Email)
	}
	fmt.Fprintf(w, "Created:\t%s\n", item.CreatedAt.Local().Format(time.DateTime))
	if canManage {
		fmt.Fprintf(w, "\nYou can mark this item as sold or remove it.\n")
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
