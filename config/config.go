package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/hadir/internal/models"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string

	UploadDir     string
	PublicBaseURL string

	TokenTTL       time.Duration
	RotateInterval time.Duration
	TokenRetention time.Duration

	RedisAddr   string
	CORSOrigins []string

	AdminEmail    string
	AdminPassword string
}

type MidtransConfig struct {
	ServerKey  string
	ClientKey  string
	Production bool
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		DBDriver:      getenv("DB_DRIVER", "postgres"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("QR_TOKEN_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RotateInterval, err = durationEnv("QR_ROTATE_INTERVAL", cfg.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.TokenRetention, err = durationEnv("QR_TOKEN_RETENTION", time.Hour); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return cfg, nil
}

func LoadMidtransConfig() (*MidtransConfig, error) {
	production, _ := strconv.ParseBool(os.Getenv("MIDTRANS_PRODUCTION"))
	return &MidtransConfig{
		ServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
		ClientKey:  os.Getenv("MIDTRANS_CLIENT_KEY"),
		Production: production,
	}, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		name := cfg.DBName
		if name == "" {
			name = "hadir.db"
		}
		dialector = sqlite.Open(name + "?_pragma=foreign_keys(1)")
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table and seeds the roles.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Event{},
		&models.Registration{},
		&models.Attendance{},
		&models.DynamicToken{},
		&models.Payment{},
		&models.CertificateTemplate{},
		&models.Certificate{},
	)
	if err != nil {
		return err
	}
	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleParticipant} {
		role := models.Role{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var role models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&role).Error; err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		RoleID:   role.ID,
	}).Error
}
