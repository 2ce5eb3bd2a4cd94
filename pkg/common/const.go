package common

const (
	KEY_HOLIDAY_DATE = "holiday:%s"
	KEY_HOLIDAY_YEAR = "holiday_year:%s:%d"
)

const (
	TRIGGER_SCHEDULED = "scheduled"
	TRIGGER_MANUAL    = "manual"
)

const (
	KEY_LOG_RUN_ID = "run_id"
)
