package clock

import "time"

// Clock 时间来源。引擎内所有“现在”都从这里取，测试中替换为可拨动的假时钟。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real 系统时钟
func Real() Clock { return realClock{} }

// DayOf 返回 t 在 loc 时区下所属日期的零点
func DayOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayBounds 返回某日 [start, end) 的时间范围
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayOf(day, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate 按 YYYY-MM-DD 解析为 loc 时区下的零点
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, loc)
}

// NextAt 计算 now 之后下一次到达 loc 时区 hh:mm 的时刻
func NextAt(now time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	at, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	lt := now.In(loc)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), at.Hour(), at.Minute(), 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
