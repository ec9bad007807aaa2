package notify_test

import "time"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
