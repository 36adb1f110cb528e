package http

import "devexpense/internal/core"

const (
	msgInvalidIncome  = "Invalid income amount!"
	msgInvalidAmount  = "Invalid amount!"
	msgLogicError     = "Total expenses cannot exceed your income!"
	msgNoHistory      = "No history available"
	msgStoreFailure   = "Could not save your session, please try again."
	msgTemplateFailed = "Error rendering page"
)

type fieldView struct {
	Name        core.Field
	Label       string
	Placeholder string
	Value       string
	Error       string
}

// pageView feeds every template; partials read only what they need.
type pageView struct {
	Fields            []fieldView
	SavingsPercentage string
	LogicError        string
	Result            core.Result
	ShowResult        bool
	History           core.History
	NoHistory         string
}

var fieldLabels = map[core.Field][2]string{
	core.FieldIncome:   {"Income", "Enter your income"},
	core.FieldSoftware: {"Software", "Software cost"},
	core.FieldCourses:  {"Courses", "Course cost"},
	core.FieldInternet: {"Internet", "Internet cost"},
}

func newPageView(sess core.Session) pageView {
	v := pageView{
		SavingsPercentage: sess.SavingsPercentage,
		Result:            sess.Result,
		ShowResult:        sess.Result.Shown(),
		History:           sess.History,
		NoHistory:         msgNoHistory,
	}
	for _, f := range core.InputFields {
		fv := fieldView{
			Name:        f,
			Label:       fieldLabels[f][0],
			Placeholder: fieldLabels[f][1],
			Value:       sess.Inputs.Get(f),
		}
		if sess.Errors.Invalid(f) {
			fv.Error = msgInvalidAmount
			if f == core.FieldIncome {
				fv.Error = msgInvalidIncome
			}
		}
		v.Fields = append(v.Fields, fv)
	}
	if sess.Errors.Logic {
		v.LogicError = msgLogicError
	}
	return v
}
