package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"MediMate_V1.0/internal/database"
	"MediMate_V1.0/internal/utility"
	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/go-gomail/gomail"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenDuration = 24 * time.Hour
	OtpExpiryDuration   = 5 * time.Minute
	OtpResendCooldown   = 1 * time.Minute
	MaxOtpAttempts      = 3
)

var (
	accounts *database.AccountStore
	verifier = emailverifier.
			NewVerifier().
			EnableAutoUpdateDisposable(). // Auto-update disposable domains list
			EnableDomainSuggest()
	emailCache = sync.Map{}
	otpStore   = sync.Map{} // Thread-safe map
	otpMutex   = sync.RWMutex{}
)

type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int64            `json:"expires_in"`
	User        database.Account `json:"user"`
}

// SignupRequest for registration
type SignupRequest struct {
	Name     string `json:"name" form:"name" validate:"required"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// LoginRequest for email/password login
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ResetRequestRequest starts the forgot-password flow
type ResetRequestRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetCompleteRequest finishes the forgot-password flow
type ResetCompleteRequest struct {
	Email       string `json:"email" form:"email"`
	OtpCode     string `json:"otp_code" form:"otp_code"`
	NewPassword string `json:"new_password" form:"new_password"`
}

type emailVerificationResult struct {
	valid     bool
	message   string
	timestamp time.Time
}

// OtpEntry stores OTP secret and metadata
type OtpEntry struct {
	UserID      string
	Email       string
	Secret      string
	GeneratedAt time.Time
	Attempts    int
	LastAttempt time.Time
	Purpose     string // "password_reset"
}

func InitAuth(store *database.AccountStore) error {
	accounts = store

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("FATAL: SESSION_SECRET environment variable is not set")
	}

	startOTPCleanup()
	log.Printf("Auth initialized with OTP support")

	return nil
}

// SignupHandler handles user registration
func SignupHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name, email, and password are required"})
	}

	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Password must be at least 8 characters"})
	}

	// Email verification
	isValidEmail, emailError, err := verifyEmailAddressWithCache(req.Email)
	if err != nil {
		log.Printf("Email verification error: %v", err)
	} else if !isValidEmail {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": emailError})
	}

	// Check email exists
	emailExists, err := accounts.EmailExists(ctx, req.Email)
	if err != nil {
		log.Printf("Error checking email: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if emailExists {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Email already exists"})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	account := database.Account{
		UserID:       uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}
	if err := accounts.Create(ctx, account); err != nil {
		log.Printf("Error creating account: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create user"})
	}

	accessToken, err := generateAccessToken(account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Error generating access token"})
	}

	log.Printf("New user registered: %s", account.Email)
	return c.JSON(http.StatusCreated, AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(AccessTokenDuration.Seconds()),
		User:        account,
	})
}

// LoginHandler verifies credentials and issues a token
func LoginHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if err := utility.CheckIPRateLimit(utility.GetRealIP(c)); err != nil {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
	}

	account, err := accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("Login attempt for non-existent account: %s", req.Email)
		utility.AddRandomDelay()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("Failed login attempt for account: %s", req.Email)
		utility.AddRandomDelay()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	}

	accessToken, err := generateAccessToken(account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Error generating access token"})
	}

	log.Printf("User logged in: %s", account.Email)
	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(AccessTokenDuration.Seconds()),
		User:        account,
	})
}

// RequestPasswordResetHandler emails an OTP code to the account holder.
// The response is identical whether or not the email is registered.
func RequestPasswordResetHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResetRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email is required"})
	}

	neutral := map[string]interface{}{
		"message":    "If the email is registered, a verification code has been sent.",
		"expires_in": int(OtpExpiryDuration.Seconds()),
	}

	account, err := accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return c.JSON(http.StatusAccepted, neutral)
		}
		log.Printf("Error fetching account for reset: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if err := generateAndStoreOTP(account.UserID, account.Email, "password_reset"); err != nil {
		log.Printf("Failed to send reset OTP: %v", err)
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, neutral)
}

// ResetPasswordHandler validates the OTP and sets the new password
func ResetPasswordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResetCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Email == "" || req.OtpCode == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email, OTP code, and new password are required"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Password must be at least 8 characters"})
	}

	account, err := accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired code"})
	}

	valid, err := verifyOTPCode(account.UserID, req.OtpCode)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	if !valid {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid OTP code"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if err := accounts.UpdatePassword(ctx, account.UserID, string(hashedPassword)); err != nil {
		log.Printf("Error updating password: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update password"})
	}

	log.Printf("Password reset completed for %s", account.Email)
	return c.JSON(http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// JwtAuthMiddleware authenticates bearer tokens and stores the user id
// in the request context.
func JwtAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing or invalid authorization header"})
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		sessionSecret := os.Getenv("SESSION_SECRET")
		token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(sessionSecret), nil
		})

		if err != nil || !token.Valid {
			log.Printf("Token validation error: %v", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		claims, ok := token.Claims.(*JwtCustomClaims)
		if !ok || claims.UserID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		return next(c)
	}
}

// Helper functions

func generateAccessToken(account database.Account) (string, error) {
	claims := &JwtCustomClaims{
		UserID: account.UserID,
		Email:  account.Email,
		Name:   account.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "medimate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	sessionSecret := os.Getenv("SESSION_SECRET")
	return token.SignedString([]byte(sessionSecret))
}

// email verification handler
func verifyEmailAddress(email string) (bool, string, error) {
	ret, err := verifier.Verify(email)
	if err != nil {
		return false, "Email verification failed due to a system error. Please try again.", err
	}

	if !ret.Syntax.Valid {
		return false, "Email address format is invalid.", nil
	}

	if ret.Disposable {
		return false, "Disposable email addresses are not allowed.", nil
	}

	if ret.Reachable == "false" || ret.Reachable == "invalid" {
		return false, "Email address is not reachable.", nil
	}

	if ret.RoleAccount {
		log.Printf("Warning: Role account detected: %s", email)
	}

	return true, "", nil
}

func verifyEmailAddressWithCache(email string) (bool, string, error) {
	if cached, ok := emailCache.Load(email); ok {
		result := cached.(emailVerificationResult)
		if time.Since(result.timestamp) < 24*time.Hour {
			return result.valid, result.message, nil
		}
	}

	valid, message, err := verifyEmailAddress(email)

	if err == nil {
		emailCache.Store(email, emailVerificationResult{
			valid:     valid,
			message:   message,
			timestamp: time.Now(),
		})
	}

	return valid, message, err
}

func generateAndStoreOTP(userID, email, purpose string) error {
	otpMutex.Lock()
	defer otpMutex.Unlock()

	// Check if OTP already exists and enforce cooldown
	if val, ok := otpStore.Load(userID); ok {
		entry := val.(OtpEntry)
		if time.Since(entry.GeneratedAt) < OtpResendCooldown {
			return fmt.Errorf("please wait %d seconds before requesting a new code",
				int(OtpResendCooldown.Seconds()-time.Since(entry.GeneratedAt).Seconds()))
		}
	}

	// Generate TOTP secret (unique per user per request)
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "MediMate",
		AccountName: email,
		Period:      uint(OtpExpiryDuration.Seconds()),
		SecretSize:  32,
		Digits:      6,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	// Generate current TOTP code
	otpCode, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate OTP code: %w", err)
	}

	// Store OTP entry
	otpStore.Store(userID, OtpEntry{
		UserID:      userID,
		Email:       email,
		Secret:      key.Secret(),
		GeneratedAt: time.Now(),
		Attempts:    0,
		Purpose:     purpose,
	})

	// Send OTP via email
	if err := sendOTPEmail(email, otpCode); err != nil {
		// Remove from store if email fails
		otpStore.Delete(userID)
		return fmt.Errorf("failed to send OTP email: %w", err)
	}

	log.Printf("OTP generated and sent to %s (purpose: %s)", email, purpose)
	return nil
}

// sendOTPEmail sends OTP code via email using gomail
func sendOTPEmail(toEmail, otpCode string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	smtpFrom := os.Getenv("SMTP_FROM")

	if smtpHost == "" || smtpUser == "" || smtpPass == "" {
		return fmt.Errorf("SMTP configuration missing")
	}

	if smtpFrom == "" {
		smtpFrom = smtpUser
	}

	port, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		port = 587
	}

	subject := "MediMate Password Reset Code"
	body := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<h2>MediMate Password Reset</h2>
			<p>We received a request to reset your password. Use the verification code below:</p>
			<div style="background: #f4f4f4; padding: 15px; text-align: center; font-size: 24px; letter-spacing: 5px; font-weight: bold; margin: 20px 0;">
				%s
			</div>
			<p><strong>This code is valid for 5 minutes.</strong></p>
			<p>If you did not request a reset, you can safely ignore this email.</p>
			<hr>
			<p style="color: #666; font-size: 12px;">Automated email from MediMate</p>
		</body>
		</html>
	`, otpCode)

	m := gomail.NewMessage()
	m.SetHeader("From", smtpFrom)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)
	errChan := make(chan error, 1)
	go func() {
		errChan <- d.DialAndSend(m)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Printf("Failed to send OTP email to %s: %v", toEmail, err)
			return err
		}
		return nil
	case <-time.After(15 * time.Second):
		log.Printf("Timeout sending OTP email to %s", toEmail)
		return fmt.Errorf("email sending timeout")
	}
}

// verifyOTPCode validates the OTP code
func verifyOTPCode(userID, otpCode string) (bool, error) {
	val, ok := otpStore.Load(userID)
	if !ok {
		return false, fmt.Errorf("no OTP found for this user")
	}

	entry := val.(OtpEntry)

	// Check expiry
	if time.Since(entry.GeneratedAt) > OtpExpiryDuration {
		otpStore.Delete(userID)
		return false, fmt.Errorf("OTP has expired")
	}

	// Check max attempts
	if entry.Attempts >= MaxOtpAttempts {
		otpStore.Delete(userID)
		return false, fmt.Errorf("maximum verification attempts exceeded")
	}

	// Update attempts
	entry.Attempts++
	entry.LastAttempt = time.Now()
	otpStore.Store(userID, entry)

	// Validate TOTP code with time window
	valid := totp.Validate(otpCode, entry.Secret)

	if valid {
		// Remove from store after successful verification
		otpStore.Delete(userID)
		return true, nil
	}

	return false, nil
}

// cleanupExpiredOTPs removes expired OTP entries (run periodically)
func cleanupExpiredOTPs() {
	otpStore.Range(func(key, value interface{}) bool {
		entry := value.(OtpEntry)
		if time.Since(entry.GeneratedAt) > OtpExpiryDuration {
			otpStore.Delete(key)
			log.Printf("Cleaned up expired OTP for user: %s", entry.UserID)
		}
		return true
	})
}

// Start OTP cleanup goroutine (call this in InitAuth)
func startOTPCleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for range ticker.C {
			cleanupExpiredOTPs()
		}
	}()
}
