package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/app/repository"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/session"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

const loginFailedMessage = "There is a problem with the login process"

type loginRequest struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `form:"name" json:"name" validate:"required,min=2,max=150"`
	Email    string `form:"email" json:"email" validate:"required,email,max=200"`
	Phone    string `form:"phone" json:"phone" validate:"omitempty,max=20"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=72"`
	Captcha  string `form:"h-captcha-response" json:"h-captcha-response"`
}

// AuthController handles customer registration and session login.
type AuthController struct {
	customers repository.CustomerRepository
	captcha   *hcaptcha.Verifier
}

// NewAuthController builds the controller. A nil captcha disables the
// registration challenge.
func NewAuthController(customers repository.CustomerRepository, captcha *hcaptcha.Verifier) *AuthController {
	return &AuthController{customers: customers, captcha: captcha}
}

// HandleAuthPage returns what a login or register form needs.
func (ac *AuthController) HandleAuthPage(c *fiber.Ctx) error {
	siteKey := ""
	if ac.captcha.Enabled() {
		siteKey = ac.captcha.SiteKey
	}
	return c.JSON(fiber.Map{
		"logged_in":        usercontext.IsLoggedIn(c),
		"hcaptcha_sitekey": siteKey,
		"csrf":             csrfToken(c),
		"flash":            flash.Get(c),
	})
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/login", loginFailedMessage)
	}

	// notice: the response never tells which of email or password was wrong
	customer, err := ac.customers.GetByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fiberlog.Errorf("[Auth] lookup %s: %v", req.Email, err)
		}
		return redirectWithError(c, "/login", loginFailedMessage)
	}
	if !models.CheckPasswordHash(req.Password, customer.Password) {
		return redirectWithError(c, "/login", loginFailedMessage)
	}

	store := session.GetSessionStore()
	if store == nil {
		return redirectWithError(c, "/login", loginFailedMessage)
	}
	sess, err := store.Get(c)
	if err != nil {
		fiberlog.Errorf("[Auth] session: %v", err)
		return redirectWithError(c, "/login", loginFailedMessage)
	}
	if err := sess.Regenerate(); err != nil {
		fiberlog.Errorf("[Auth] regenerate session: %v", err)
		return redirectWithError(c, "/login", loginFailedMessage)
	}
	sess.Set(usercontext.KeyCustomerID, customer.ID)
	sess.Set(usercontext.KeyName, customer.Name)
	sess.Set(usercontext.KeyIsAdmin, customer.IsAdmin())
	if err := sess.Save(); err != nil {
		fiberlog.Errorf("[Auth] save session: %v", err)
		return redirectWithError(c, "/login", loginFailedMessage)
	}

	fiberlog.Infof("[Auth] customer %d logged in from %s", customer.ID, GetClientIP(c))
	if customer.IsAdmin() {
		return redirectWithSuccess(c, "/admin/bills", "Welcome back, "+customer.Name)
	}
	return redirectWithSuccess(c, "/user/bills", "Welcome back, "+customer.Name)
}

func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/register", invalidFieldMessage(err))
	}

	if err := ac.captcha.Verify(c.UserContext(), req.Captcha, GetClientIP(c)); err != nil {
		fiberlog.Warnf("[Auth] captcha rejected: %v", err)
		return redirectWithError(c, "/register", "Please complete the captcha.")
	}

	exists, err := ac.customers.EmailExists(req.Email)
	if err != nil {
		fiberlog.Errorf("[Auth] email check: %v", err)
		return redirectWithError(c, "/register", "Registration failed. Please try again.")
	}
	if exists {
		return redirectWithError(c, "/register", "An account with this email already exists.")
	}

	customer, err := models.CreateCustomer(req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		return redirectWithError(c, "/register", "Registration failed. Please check your input.")
	}
	if err := ac.customers.Create(customer); err != nil {
		fiberlog.Errorf("[Auth] create customer: %v", err)
		return redirectWithError(c, "/register", "Registration failed. Please try again.")
	}

	fiberlog.Infof("[Auth] registered customer %d", customer.ID)
	return redirectWithSuccess(c, "/login", "Registration successful. Please log in.")
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	store := session.GetSessionStore()
	if store != nil {
		if sess, err := store.Get(c); err == nil {
			if err := sess.Destroy(); err != nil {
				fiberlog.Warnf("[Auth] destroy session: %v", err)
			}
		}
	}
	usercontext.Set(c, usercontext.UserContext{})
	return redirectWithSuccess(c, "/login", "You have been logged out.")
}
