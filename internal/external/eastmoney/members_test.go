package eastmoney

import (
	"testing"
	"time"
)

const membersPage = `
<html><body>
<table class="board-members">
  <tbody>
    <tr><td>600519</td><td>贵州茅台</td><td>12.40%</td></tr>
    <tr><td>000858</td><td>五粮液</td><td>8.10%</td></tr>
    <tr><td></td><td>placeholder</td><td>-</td></tr>
  </tbody>
</table>
<div class="pager"><a class="pager-next" href="?page=2">下一页</a></div>
</body></html>`

const membersLastPage = `
<html><body>
<table class="board-members">
  <tbody>
    <tr><td>601318</td><td>中国平安</td></tr>
  </tbody>
</table>
</body></html>`

func TestParseMembersHTML(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	members, hasMore := parseMembersHTML(membersPage, "BK0475", asOf)

	if len(members) != 2 {
		t.Fatalf("expected 2 members (blank code skipped), got %d", len(members))
	}
	if !hasMore {
		t.Error("expected hasMore with a pager-next link")
	}

	first := members[0]
	if first.String("stock_code") != "600519" {
		t.Errorf("expected code 600519, got %q", first.String("stock_code"))
	}
	if first.String("stock_name") != "贵州茅台" {
		t.Errorf("unexpected name %q", first.String("stock_name"))
	}
	if first.String("board_id") != "BK0475" {
		t.Errorf("unexpected board id %q", first.String("board_id"))
	}
	if first.String("trade_date") != "2026-08-28" {
		t.Errorf("unexpected trade date %q", first.String("trade_date"))
	}

	weight := first.Float("weight")
	if weight < 0.1239 || weight > 0.1241 {
		t.Errorf("expected weight 0.124, got %v", weight)
	}
}

func TestParseMembersHTMLLastPage(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	members, hasMore := parseMembersHTML(membersLastPage, "BK0475", asOf)

	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if hasMore {
		t.Error("expected hasMore=false without a pager-next link")
	}

	// Two-cell rows carry no weight column
	if members[0].Float("weight") != 0 {
		t.Errorf("expected zero weight, got %v", members[0].Float("weight"))
	}
}

func TestParseMembersHTMLGarbage(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	members, hasMore := parseMembersHTML("not html at all", "BK0475", asOf)
	if len(members) != 0 || hasMore {
		t.Errorf("expected empty result for garbage input, got %d members", len(members))
	}
}
