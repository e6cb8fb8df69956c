package tickers

// hangSengTech lists the Hang Seng Tech Index constituents. The upstream list
// this was taken from carried 2382.HK twice; it appears once here.
var hangSengTech = []string{
	"0700.HK", "9988.HK", "3690.HK", "9999.HK", "1810.HK", "0981.HK", "1024.HK", "9618.HK", "2382.HK", "6618.HK",
	"0268.HK", "9888.HK", "1797.HK", "9626.HK", "2015.HK", "0992.HK", "9866.HK", "6690.HK", "0241.HK", "9961.HK",
	"0772.HK", "9868.HK", "0285.HK", "0522.HK", "1347.HK", "0780.HK", "6060.HK", "0302.HK", "2269.HK",
}

var mag7 = []string{"AAPL", "AMZN", "GOOGL", "META", "MSFT", "NFLX", "TSLA"}

var indexes = []string{
	"^GSPC", // S&P 500
	"^DJI",  // Dow Jones Industrial Average
	"^IXIC", // Nasdaq Composite
	"^RUT",  // Russell 2000
	"^VIX",  // Volatility Index
}
