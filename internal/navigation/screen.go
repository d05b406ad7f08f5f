// Package navigation defines what every screen needs from the screen that
// opens it. Cross-screen state travels only as navigation parameters, so each
// destination declares a schema and validates its parameters when mounted.
package navigation

// Screen names a navigable view.
type Screen string

const (
	ScreenLogin           Screen = "login"
	ScreenVerifyCode      Screen = "verify-code"
	ScreenRegister        Screen = "register"
	ScreenForgotPassword  Screen = "forgot-password"
	ScreenHome            Screen = "home"
	ScreenFarmList        Screen = "farm-list"
	ScreenFarmDetail      Screen = "farm-detail"
	ScreenPlotList        Screen = "plot-list"
	ScreenPlotDetail      Screen = "plot-detail"
	ScreenCropList        Screen = "crop-list"
	ScreenTaskList        Screen = "task-list"
	ScreenTaskDetail      Screen = "task-detail"
	ScreenTaskCreate      Screen = "task-create"
	ScreenTaskAssign      Screen = "task-assign"
	ScreenCostRegister    Screen = "cost-register"
	ScreenFinancialReport Screen = "financial-report"
	ScreenPestDetection   Screen = "pest-detection"
	ScreenProfile         Screen = "profile"
)

var titles = map[Screen]string{
	ScreenLogin:           "Log in",
	ScreenVerifyCode:      "Verification code",
	ScreenRegister:        "Create account",
	ScreenForgotPassword:  "Forgot password",
	ScreenHome:            "Home",
	ScreenFarmList:        "Farms",
	ScreenFarmDetail:      "Farm",
	ScreenPlotList:        "Plots",
	ScreenPlotDetail:      "Plot",
	ScreenCropList:        "Crops",
	ScreenTaskList:        "Tasks",
	ScreenTaskDetail:      "Task",
	ScreenTaskCreate:      "New task",
	ScreenTaskAssign:      "Assign task",
	ScreenCostRegister:    "Register cost",
	ScreenFinancialReport: "Financial report",
	ScreenPestDetection:   "Pest detection",
	ScreenProfile:         "Profile",
}

// Title is the human-readable header for the screen.
func (s Screen) Title() string {
	if t, ok := titles[s]; ok {
		return t
	}
	return string(s)
}

// Public reports whether the screen is reachable without a session.
func (s Screen) Public() bool {
	switch s {
	case ScreenLogin, ScreenVerifyCode, ScreenRegister, ScreenForgotPassword:
		return true
	}
	return false
}

// Kind is the expected type of a parameter value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Field is one declared parameter.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the parameter contract of one screen.
type Schema struct {
	Required []Field
	Optional []Field
}

// Parameter keys shared by every schema.
const (
	ParamToken    = "token"
	ParamEmail    = "email"
	ParamFarmID   = "farmId"
	ParamPlotID   = "plotId"
	ParamTaskID   = "taskId"
	ParamImageURI = "imageUri"
)

var (
	fToken    = Field{ParamToken, KindString}
	fEmail    = Field{ParamEmail, KindString}
	fFarmID   = Field{ParamFarmID, KindInt}
	fPlotID   = Field{ParamPlotID, KindInt}
	fTaskID   = Field{ParamTaskID, KindInt}
	fImageURI = Field{ParamImageURI, KindString}
)

var schemas = map[Screen]Schema{
	ScreenLogin:           {Optional: []Field{fEmail}},
	ScreenVerifyCode:      {Required: []Field{fEmail}},
	ScreenRegister:        {},
	ScreenForgotPassword:  {Optional: []Field{fEmail}},
	ScreenHome:            {Required: []Field{fToken}},
	ScreenFarmList:        {Required: []Field{fToken}},
	ScreenFarmDetail:      {Required: []Field{fToken, fFarmID}},
	ScreenPlotList:        {Required: []Field{fToken, fFarmID}},
	ScreenPlotDetail:      {Required: []Field{fToken, fFarmID, fPlotID}},
	ScreenCropList:        {Required: []Field{fToken}},
	ScreenTaskList:        {Required: []Field{fToken, fFarmID}},
	ScreenTaskDetail:      {Required: []Field{fToken, fTaskID, fFarmID}},
	ScreenTaskCreate:      {Required: []Field{fToken, fFarmID}, Optional: []Field{fPlotID}},
	ScreenTaskAssign:      {Required: []Field{fToken, fTaskID, fFarmID}},
	ScreenCostRegister:    {Required: []Field{fToken, fFarmID}, Optional: []Field{fTaskID}},
	ScreenFinancialReport: {Required: []Field{fToken, fFarmID}},
	ScreenPestDetection:   {Required: []Field{fToken, fPlotID}, Optional: []Field{fImageURI}},
	ScreenProfile:         {Required: []Field{fToken}},
}

// SchemaFor returns the declared contract for s.
func SchemaFor(s Screen) (Schema, bool) {
	sc, ok := schemas[s]
	return sc, ok
}

// Screens lists every known screen.
func Screens() []Screen {
	out := make([]Screen, 0, len(schemas))
	for s := range schemas {
		out = append(out, s)
	}
	return out
}
