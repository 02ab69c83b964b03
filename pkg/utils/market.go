package utils

import "time"

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// IsMarketOpenAt reports whether the NSE equity-derivatives session is open
// at the given instant: Monday-Friday, 09:15-15:30 IST. Exchange holidays
// are not modelled.
func IsMarketOpenAt(t time.Time) bool {
	ist := t.In(IndiaLocation)

	if ist.Weekday() == time.Saturday || ist.Weekday() == time.Sunday {
		return false
	}

	mins := ist.Hour()*60 + ist.Minute()
	return mins >= 555 && mins < 930 // 09:15 .. 15:30
}

// IsMarketOpen reports whether the market is open right now.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// NextMarketOpen returns the next session open at or after t.
func NextMarketOpen(t time.Time) time.Time {
	ist := t.In(IndiaLocation)

	next := time.Date(ist.Year(), ist.Month(), ist.Day(), 9, 15, 0, 0, IndiaLocation)
	if !ist.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// MarketCloseOn returns the session close (15:30 IST) for t's date.
func MarketCloseOn(t time.Time) time.Time {
	ist := t.In(IndiaLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 15, 30, 0, 0, IndiaLocation)
}
