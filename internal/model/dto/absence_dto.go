package dto

// AbsenceNoticeRequest 提前报备缺勤
type AbsenceNoticeRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required,max=300"`
}
