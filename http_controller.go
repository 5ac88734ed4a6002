package auth

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the auth endpoints plus the admin surface on
// the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.
		Post(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.post")

	app.
		Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.
		Get(controller.Routes.ValidateJWT, controller.ValidateJWT).
		SetName("validate-jwt.get")

	app.
		Post(controller.Routes.PasswordResetRequest, controller.PasswordResetRequest).
		SetName("pwd-reset-request.post")

	app.
		Post(controller.Routes.PasswordReset, controller.PasswordResetExecute).
		SetName("pwd-reset-do.post")

	app.
		Get(controller.Routes.AdminUsers, controller.adminOnly(controller.AdminUsersList)).
		SetName("admin.users.list")

	app.
		Delete(controller.Routes.AdminUsers+"/:id", controller.adminOnly(controller.AdminUserDelete)).
		SetName("admin.users.delete")

	app.
		Put(controller.Routes.AdminUsers+"/:id/role", controller.adminOnly(controller.AdminUserRoleUpdate)).
		SetName("admin.users.role.put")

	app.
		Get(controller.Routes.AdminCheckpoints, controller.adminOnly(controller.AdminCheckpointsList)).
		SetName("admin.checkpoints.list")
}

type AuthControllerRoutes struct {
	Login                string
	Logout               string
	Register             string
	ValidateJWT          string
	PasswordResetRequest string
	PasswordReset        string
	AdminUsers           string
	AdminCheckpoints     string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Tokens       TokenService
	Mailer       Mailer
	Checkpoints  CheckpointLister
	ResetURL     string
	Activity     ActivitySink
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerTokens(tokens TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

func WithControllerCheckpoints(lister CheckpointLister) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Checkpoints = lister
		return c
	}
}

func WithControllerResetURL(url string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ResetURL = url
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: DefaultJSONErrorHandler,
		Activity:     noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Login:                "/user/login",
			Logout:               "/user/logout",
			Register:             "/user/register",
			ValidateJWT:          "/user/validate-jwt",
			PasswordResetRequest: "/user/request-password-reset",
			PasswordReset:        "/user/reset-password",
			AdminUsers:           "/admin/users",
			AdminCheckpoints:     "/admin/checkpoints",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

// DefaultJSONErrorHandler renders any error as the JSON error envelope.
func DefaultJSONErrorHandler(c router.Context, err error) error {
	return RenderJSONError(c, AsRichError(err))
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.ErrorHandler(ctx, ErrMissingCredentials)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrMissingCredentials)
	}

	user, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message":  "Sign-in successful",
		"userData": user.Public(),
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Signed out successfully",
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload. Password length is checked by the
// register handler so short passwords map to a bad request rather than
// a validation failure.
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: %v", err)
		return a.ErrorHandler(ctx, ErrMissingRegistration)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %v", err)
		return a.ErrorHandler(ctx, ErrMissingRegistration)
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, router.ViewContext{
		"message": "User registered successfully",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (a *AuthController) ValidateJWT(ctx router.Context) error {
	current, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, ErrInvalidToken)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message":  "Token is valid",
		"userData": current,
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.New("A valid email is required", goerrors.CategoryValidation))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, goerrors.New("A valid email is required", goerrors.CategoryValidation))
	}

	req := InitializePasswordResetMessage{
		Email:    payload.Email,
		ResetURL: a.ResetURL,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Mailer).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset request error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Password reset email sent successfully",
	})
}

// PasswordResetExecutePayload holds values for finishing a reset
type PasswordResetExecutePayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r PasswordResetExecutePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetExecutePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return a.ErrorHandler(ctx, ErrResetTokenNotFound)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrResetTokenNotFound)
	}

	req := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Password has been reset successfully",
	})
}

// adminOnly wraps a handler so it runs only for a valid, fresh session
// belonging to an administrative role.
func (a *AuthController) adminOnly(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		if _, err := a.Auther.RequireAdmin(ctx); err != nil {
			return a.ErrorHandler(ctx, err)
		}
		return next(ctx)
	}
}

func (a *AuthController) AdminUsersList(ctx router.Context) error {
	users, err := a.Repo.Users().List(ctx.Context())
	if err != nil {
		a.Logger.Error("admin list users: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	out := make([]*PublicUser, 0, len(users))
	for _, user := range users {
		out = append(out, user.Public())
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"users": out,
	})
}

func (a *AuthController) AdminUserDelete(ctx router.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id", ""), 10, 64)
	if err != nil {
		return a.ErrorHandler(ctx, goerrors.New("Invalid user id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := a.Repo.Users().Delete(ctx.Context(), id); err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		a.Logger.Error("admin delete user: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "User deleted successfully",
	})
}

// RoleUpdatePayload carries the target role for a user
type RoleUpdatePayload struct {
	Role UserRole `form:"role" json:"role"`
}

// Validate will validate the payload
func (r RoleUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(
			RoleUser,
			RoleAdmin,
			RoleSuperAdmin,
		)),
	)
}

func (a *AuthController) AdminUserRoleUpdate(ctx router.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id", ""), 10, 64)
	if err != nil {
		return a.ErrorHandler(ctx, goerrors.New("Invalid user id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	payload := new(RoleUpdatePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.New("Invalid role payload", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, goerrors.New("Invalid role", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	user, err := a.Repo.Users().UpdateRole(ctx.Context(), id, payload.Role)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		a.Logger.Error("admin update role: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	a.recordRoleChange(ctx, user)

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Role updated successfully",
		"user":    user.Public(),
	})
}

func (a *AuthController) AdminCheckpointsList(ctx router.Context) error {
	if a.Checkpoints == nil {
		return ctx.JSON(router.StatusOK, router.ViewContext{
			"checkpoints": []map[string]any{},
		})
	}

	checkpoints, err := a.Checkpoints.ListCheckpoints(ctx.Context())
	if err != nil {
		a.Logger.Error("admin list checkpoints: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"checkpoints": checkpoints,
	})
}

func (a *AuthController) recordRoleChange(ctx router.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     ActorRef{Type: "admin"},
		UserID:    user.Subject(),
		Metadata: map[string]any{
			"role": user.Role,
		},
	}

	if err := normalizeActivitySink(a.Activity).Record(ctx.Context(), event); err != nil {
		a.Logger.Warn("activity sink error during role change: %v", err)
	}
}
