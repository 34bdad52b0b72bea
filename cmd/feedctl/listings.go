package main

import (
	"context"
	"fmt"
	"io"

	"github.com/classifieds/backend/internal/feed"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// maxPages bounds --all so a server bug cannot loop forever
const maxPages = 1000

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Fetch feed pages",
	Long: `Fetch the instant listings feed with the given filters.

Examples:
  feedctl listings --category electronics --sort price_low --limit 10
  feedctl listings --country KE --all
  feedctl listings --etag '"abc..."'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		p := feed.Params{}
		p.Country, _ = flags.GetString("country")
		p.Region, _ = flags.GetString("region")
		p.City, _ = flags.GetString("city")
		p.Category, _ = flags.GetString("category")
		p.Subcategory, _ = flags.GetString("subcategory")
		p.Sort, _ = flags.GetString("sort")
		p.Cursor, _ = flags.GetString("cursor")
		p.Limit, _ = flags.GetInt("limit")
		p.SellerID, _ = flags.GetString("seller")
		p.Search, _ = flags.GetString("search")
		all, _ := flags.GetBool("all")
		etag, _ := flags.GetString("etag")

		return runListings(cmd, newFeedClient(), p, all, etag, color.Output)
	},
}

func init() {
	f := listingsCmd.Flags()
	f.String("country", "", "Country code filter")
	f.String("region", "", "Region filter")
	f.String("city", "", "City filter")
	f.String("category", "", "Category filter")
	f.String("subcategory", "", "Subcategory filter")
	f.String("sort", "", "newest, oldest, price_low, price_high or popular")
	f.String("cursor", "", "Continue from this cursor")
	f.IntP("limit", "l", 0, "Page size (1-50, server default 20)")
	f.String("seller", "", "Seller id filter")
	f.String("search", "", "Full-text search")
	f.Bool("all", false, "Follow nextCursor until the feed is exhausted")
	f.String("etag", "", "Send If-None-Match with this ETag")
}

func runListings(cmd *cobra.Command, fc *feedClient, p feed.Params, all bool, etag string, w io.Writer) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	seen := map[string]bool{}

	for page := 1; page <= maxPages; page++ {
		res, err := fc.Page(ctx, p, etag)
		if err != nil {
			return err
		}
		if res.NotModified {
			printInfo(w, "304 Not Modified (ETag %s, cache %s)", res.ETag, res.Cache)
			return nil
		}

		if err := printPage(w, page, res); err != nil {
			return err
		}

		for _, item := range res.Body.Items {
			if seen[item.ID] {
				logger.Warn("listing repeated", "id", item.ID, "page", page)
			}
			seen[item.ID] = true
		}

		if !all || !res.Body.HasMore || res.Body.NextCursor == nil {
			break
		}
		if page == maxPages {
			printWarning(w, "stopped after %d pages, the feed still reports more", maxPages)
			break
		}
		p.Cursor = *res.Body.NextCursor
		etag = ""
		logger.Debug("following cursor", "page", page+1)
	}

	if all && outputFormat() != "json" {
		fmt.Fprintf(w, "\n%d distinct listings\n", len(seen))
	}
	return nil
}

func printPage(w io.Writer, page int, res *pageResult) error {
	if outputFormat() == "json" {
		return printJSON(w, res.Body)
	}

	fmt.Fprintf(w, "Page %d: %d items, totalApprox %d, hasMore %t, cache %s, %s\n",
		page, len(res.Body.Items), res.Body.TotalApprox, res.Body.HasMore, res.Cache, res.ResponseTime)

	rows := make([][]string, 0, len(res.Body.Items))
	for _, item := range res.Body.Items {
		boost := ""
		if item.IsBoosted {
			boost = boostStyle.Sprint("*")
		}
		rows = append(rows, []string{
			item.ID,
			item.Title,
			fmt.Sprintf("%.2f %s", item.Price, item.Currency),
			fmt.Sprintf("%s %s", item.CityName, item.CountryCode),
			item.CreatedAt,
			boost,
		})
	}
	return printTable(w, []string{"ID", "TITLE", "PRICE", "LOCATION", "CREATED", "BOOST"}, rows)
}
