package navigation

// Route is a typed destination. Each screen has exactly one Route type, so a
// caller building the struct sees every field the destination consumes.
type Route interface {
	Screen() Screen
	Params() Params
}

// Login opens the login form, optionally prefilled.
type Login struct {
	Email string
}

func (Login) Screen() Screen { return ScreenLogin }
func (r Login) Params() Params {
	p := Params{}
	p.setString(ParamEmail, r.Email)
	return p
}
func (r *Login) load(p Params) { r.Email = p.str(ParamEmail) }

// VerifyCode is the second-factor screen for a pending challenge.
type VerifyCode struct {
	Email string
}

func (VerifyCode) Screen() Screen { return ScreenVerifyCode }
func (r VerifyCode) Params() Params {
	p := Params{}
	p.setString(ParamEmail, r.Email)
	return p
}
func (r *VerifyCode) load(p Params) { r.Email = p.str(ParamEmail) }

// Register opens the sign-up form.
type Register struct{}

func (Register) Screen() Screen   { return ScreenRegister }
func (Register) Params() Params   { return Params{} }
func (r *Register) load(_ Params) {}

// ForgotPassword opens the reset flow.
type ForgotPassword struct {
	Email string
}

func (ForgotPassword) Screen() Screen { return ScreenForgotPassword }
func (r ForgotPassword) Params() Params {
	p := Params{}
	p.setString(ParamEmail, r.Email)
	return p
}
func (r *ForgotPassword) load(p Params) { r.Email = p.str(ParamEmail) }

// Home is the authenticated landing screen.
type Home struct {
	Token string
}

func (Home) Screen() Screen   { return ScreenHome }
func (r Home) Params() Params { return tokenParams(r.Token) }
func (r *Home) load(p Params) { r.Token = p.str(ParamToken) }

func tokenParams(t string) Params {
	p := Params{}
	p.setString(ParamToken, t)
	return p
}

// FarmList shows the user's farms.
type FarmList struct {
	Token string
}

func (FarmList) Screen() Screen   { return ScreenFarmList }
func (r FarmList) Params() Params { return tokenParams(r.Token) }
func (r *FarmList) load(p Params) { r.Token = p.str(ParamToken) }

// FarmDetail shows one farm.
type FarmDetail struct {
	Token  string
	FarmID int64
}

func (FarmDetail) Screen() Screen { return ScreenFarmDetail }
func (r FarmDetail) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *FarmDetail) load(p Params) {
	r.Token, r.FarmID = p.str(ParamToken), p.id(ParamFarmID)
}

// PlotList shows the plots of a farm.
type PlotList struct {
	Token  string
	FarmID int64
}

func (PlotList) Screen() Screen { return ScreenPlotList }
func (r PlotList) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *PlotList) load(p Params) {
	r.Token, r.FarmID = p.str(ParamToken), p.id(ParamFarmID)
}

// PlotDetail shows one plot.
type PlotDetail struct {
	Token  string
	FarmID int64
	PlotID int64
}

func (PlotDetail) Screen() Screen { return ScreenPlotDetail }
func (r PlotDetail) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	p.setInt(ParamPlotID, r.PlotID)
	return p
}
func (r *PlotDetail) load(p Params) {
	r.Token, r.FarmID, r.PlotID = p.str(ParamToken), p.id(ParamFarmID), p.id(ParamPlotID)
}

// CropList shows the crop catalogue.
type CropList struct {
	Token string
}

func (CropList) Screen() Screen   { return ScreenCropList }
func (r CropList) Params() Params { return tokenParams(r.Token) }
func (r *CropList) load(p Params) { r.Token = p.str(ParamToken) }

// TaskList shows the tasks of a farm.
type TaskList struct {
	Token  string
	FarmID int64
}

func (TaskList) Screen() Screen { return ScreenTaskList }
func (r TaskList) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *TaskList) load(p Params) {
	r.Token, r.FarmID = p.str(ParamToken), p.id(ParamFarmID)
}

// TaskDetail shows one task.
type TaskDetail struct {
	Token  string
	TaskID int64
	FarmID int64
}

func (TaskDetail) Screen() Screen { return ScreenTaskDetail }
func (r TaskDetail) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamTaskID, r.TaskID)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *TaskDetail) load(p Params) {
	r.Token, r.TaskID, r.FarmID = p.str(ParamToken), p.id(ParamTaskID), p.id(ParamFarmID)
}

// TaskCreate opens the new-task form, optionally bound to a plot.
type TaskCreate struct {
	Token  string
	FarmID int64
	PlotID int64
}

func (TaskCreate) Screen() Screen { return ScreenTaskCreate }
func (r TaskCreate) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	p.setInt(ParamPlotID, r.PlotID)
	return p
}
func (r *TaskCreate) load(p Params) {
	r.Token, r.FarmID, r.PlotID = p.str(ParamToken), p.id(ParamFarmID), p.id(ParamPlotID)
}

// TaskAssign picks a worker for a task.
type TaskAssign struct {
	Token  string
	TaskID int64
	FarmID int64
}

func (TaskAssign) Screen() Screen { return ScreenTaskAssign }
func (r TaskAssign) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamTaskID, r.TaskID)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *TaskAssign) load(p Params) {
	r.Token, r.TaskID, r.FarmID = p.str(ParamToken), p.id(ParamTaskID), p.id(ParamFarmID)
}

// CostRegister records a cost against a farm and optionally a task.
type CostRegister struct {
	Token  string
	FarmID int64
	TaskID int64
}

func (CostRegister) Screen() Screen { return ScreenCostRegister }
func (r CostRegister) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	p.setInt(ParamTaskID, r.TaskID)
	return p
}
func (r *CostRegister) load(p Params) {
	r.Token, r.FarmID, r.TaskID = p.str(ParamToken), p.id(ParamFarmID), p.id(ParamTaskID)
}

// FinancialReport shows a farm's cost summary.
type FinancialReport struct {
	Token  string
	FarmID int64
}

func (FinancialReport) Screen() Screen { return ScreenFinancialReport }
func (r FinancialReport) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamFarmID, r.FarmID)
	return p
}
func (r *FinancialReport) load(p Params) {
	r.Token, r.FarmID = p.str(ParamToken), p.id(ParamFarmID)
}

// PestDetection analyses an image taken on a plot.
type PestDetection struct {
	Token    string
	PlotID   int64
	ImageURI string
}

func (PestDetection) Screen() Screen { return ScreenPestDetection }
func (r PestDetection) Params() Params {
	p := tokenParams(r.Token)
	p.setInt(ParamPlotID, r.PlotID)
	p.setString(ParamImageURI, r.ImageURI)
	return p
}
func (r *PestDetection) load(p Params) {
	r.Token, r.PlotID, r.ImageURI = p.str(ParamToken), p.id(ParamPlotID), p.str(ParamImageURI)
}

// Profile shows the signed-in user.
type Profile struct {
	Token string
}

func (Profile) Screen() Screen   { return ScreenProfile }
func (r Profile) Params() Params { return tokenParams(r.Token) }
func (r *Profile) load(p Params) { r.Token = p.str(ParamToken) }
