package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// maxMemberPages bounds board membership pagination
const maxMemberPages = 20

// FetchBoardMembers fetches the constituent list of one board for a trading
// date. The provider serves membership as paginated HTML tables.
func (c *Client) FetchBoardMembers(ctx context.Context, boardID string, asOf time.Time) ([]contracts.Row, error) {
	var all []contracts.Row

	for page := 1; page <= maxMemberPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		params := url.Values{}
		params.Set("bk", boardID)
		params.Set("page", strconv.Itoa(page))

		body, err := c.fetchBody(ctx, c.memberBase, "/center/boardlist.html", params)
		if err != nil {
			return all, fmt.Errorf("fetch board members page %d: %w", page, err)
		}

		members, hasMore := parseMembersHTML(body, boardID, asOf)
		all = append(all, members...)

		if !hasMore || len(members) == 0 {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"board_id": boardID,
		"count":    len(all),
	}).Debug("Fetched board members")
	return all, nil
}

// parseMembersHTML parses one membership page. Each constituent row is a
// <tr> with stock code, name and index weight cells; a "next" pager link
// signals more pages.
func parseMembersHTML(html, boardID string, asOf time.Time) ([]contracts.Row, bool) {
	var members []contracts.Row

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return members, false
	}

	day := asOf.Format(contracts.DateLayout)

	doc.Find("table.board-members tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		code := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if code == "" {
			return
		}

		weight := 0.0
		if cells.Length() >= 3 {
			weightText := strings.TrimSuffix(strings.TrimSpace(cells.Eq(2).Text()), "%")
			weight, _ = strconv.ParseFloat(weightText, 64)
			weight /= 100
		}

		members = append(members, contracts.Row{
			"board_id":   boardID,
			"trade_date": day,
			"stock_code": code,
			"stock_name": name,
			"weight":     weight,
		})
	})

	hasMore := doc.Find("a.pager-next").Length() > 0

	return members, hasMore
}
