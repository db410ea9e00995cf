package resolver

// siteTemplate maps a site name or alias to a search URL template with a
// {word} placeholder. Iteration order is significant: exact matches are
// tried over the whole table first, then substring matches in either
// direction, first hit wins.
type siteTemplate struct {
	key      string
	template string
}

// siteSearch scopes a Google search to one domain.
func siteSearch(domain string) string {
	return "https://www.google.com/search?q={word}+site%3A" + domain
}

// directTemplates lists SNS sites with reliable on-site search URLs.
// They match the source name exactly only: their short keys would
// otherwise substring-match unrelated sources ("netflix" contains "x").
var directTemplates = []siteTemplate{
	{"x", "https://x.com/search?q={word}"},
	{"twitter", "https://x.com/search?q={word}"},
	{"youtube", "https://www.youtube.com/results?search_query={word}"},
	{"google", "https://www.google.com/search?q={word}"},
}

// templates lists the known site-search aliases.
var templates = []siteTemplate{
	// Gourmet.
	{"食べログ", siteSearch("tabelog.com")},
	{"tabelog", siteSearch("tabelog.com")},
	{"ホットペッパーグルメ", siteSearch("hotpepper.jp")},
	{"ホットペッパー", siteSearch("hotpepper.jp")},
	{"hotpepper", siteSearch("hotpepper.jp")},
	{"ぐるなび", siteSearch("gnavi.co.jp")},
	{"gnavi", siteSearch("gnavi.co.jp")},
	{"retty", siteSearch("retty.me")},
	// Travel.
	{"jalan", siteSearch("jalan.net")},
	{"じゃらん", siteSearch("jalan.net")},
	{"楽天トラベル", siteSearch("travel.rakuten.co.jp")},
	{"booking.com", siteSearch("booking.com")},
	{"booking", siteSearch("booking.com")},
	// Jobs.
	{"indeed", siteSearch("indeed.com")},
	{"townwork", siteSearch("townwork.net")},
	{"タウンワーク", siteSearch("townwork.net")},
	{"リクナビnext", siteSearch("next.rikunabi.com")},
	{"マイナビ転職", siteSearch("tenshoku.mynavi.jp")},
	{"doda", siteSearch("doda.jp")},
	// Shopping.
	{"amazon", siteSearch("amazon.co.jp")},
	{"アマゾン", siteSearch("amazon.co.jp")},
	{"楽天市場", siteSearch("rakuten.co.jp")},
	{"rakuten", siteSearch("rakuten.co.jp")},
	{"メルカリ", siteSearch("mercari.com")},
	{"mercari", siteSearch("mercari.com")},
	{"yahoo!ショッピング", siteSearch("shopping.yahoo.co.jp")},
	{"yahooショッピング", siteSearch("shopping.yahoo.co.jp")},
	// Real estate.
	{"suumo", siteSearch("suumo.jp")},
	{"スーモ", siteSearch("suumo.jp")},
	{"homes", siteSearch("homes.co.jp")},
	// News.
	{"yahoo!ニュース", siteSearch("news.yahoo.co.jp")},
	{"yahooニュース", siteSearch("news.yahoo.co.jp")},
	{"nhk", siteSearch("www3.nhk.or.jp")},
}
