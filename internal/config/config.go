// Package config loads the bot configuration from environment variables.
// envconfig maps variables onto struct fields; compound values (ID lists,
// role→points tables, the mystery-box reward table) are parsed by hand.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL application settings.
type Config struct {
	// --- Discord ---
	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	GuildID         string `envconfig:"GUILD_ID" required:"true"`

	// --- Database ---
	// Inside Docker "localhost" is almost always wrong; default to the
	// docker-compose service name and override DB_HOST=localhost locally.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"manaverse_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Admin panel ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Economy ---
	TotalSupply      float64 `envconfig:"ECONOMY_TOTAL_SUPPLY" default:"10000000000"`
	PointsToUSD      float64 `envconfig:"ECONOMY_POINTS_TO_USD" default:"0.0005"`
	CheckInReward    float64 `envconfig:"ECONOMY_CHECKIN_REWARD" default:"150"`
	FlushIntervalSec int     `envconfig:"ECONOMY_FLUSH_INTERVAL_SECONDS" default:"300"`

	// --- Payout ---
	MinPayoutAmount      float64       `envconfig:"PAYOUT_MIN_AMOUNT" default:"5000"`
	PayoutFeePercent     float64       `envconfig:"PAYOUT_FEE_PERCENT" default:"10"`
	PayoutConfirmation   time.Duration `envconfig:"PAYOUT_CONFIRMATION_TIMEOUT" default:"30s"`
	ApprovedExchangesRaw string        `envconfig:"PAYOUT_EXCHANGES" default:"binance,bitget,bybit,mexc,bingx"`
	ApprovedExchanges    []string      `envconfig:"-"`

	// --- Mystery box ---
	MysteryBoxCost       float64          `envconfig:"MYSTERYBOX_COST" default:"1000"`
	MysteryBoxRewardsRaw string           `envconfig:"MYSTERYBOX_REWARDS" default:"900:35,800:30,1000:20,1600:15"`
	MysteryBoxRewards    []WeightedReward `envconfig:"-"`
	MysteryBoxMaxPerDay  int              `envconfig:"MYSTERYBOX_MAX_PER_24H" default:"2"`

	// --- Reaction award ---
	ReactionEmoji       string   `envconfig:"REACTION_EMOJI" default:"🌟"`
	MinReactionPoints   float64  `envconfig:"REACTION_MIN_POINTS" default:"50"`
	MaxReactionPoints   float64  `envconfig:"REACTION_MAX_POINTS" default:"150"`
	ReactionChannelsRaw string   `envconfig:"REACTION_CHANNEL_IDS" default:""`
	ReactionChannels    []string `envconfig:"-"`

	// --- Referrals ---
	// Role→points tables as "roleID:points,roleID:points".
	ReferrerPointsRaw     string             `envconfig:"REFERRAL_REFERRER_POINTS" default:""`
	RefereePointsRaw      string             `envconfig:"REFERRAL_REFEREE_POINTS" default:""`
	ReferrerPointsPerRole map[string]float64 `envconfig:"-"`
	RefereePointsPerRole  map[string]float64 `envconfig:"-"`

	// --- Tasks ---
	// Engagement→points table for proof submissions.
	EngagementPointsRaw string             `envconfig:"TASK_ENGAGEMENT_POINTS" default:"like:20,retweet:30,comment:15"`
	EngagementPoints    map[string]float64 `envconfig:"-"`
	RoleMultipliersRaw  string             `envconfig:"TASK_ROLE_MULTIPLIERS" default:""`
	RoleMultipliers     map[string]float64 `envconfig:"-"`

	// --- Quests ---
	QuestPoints float64 `envconfig:"QUEST_POINTS" default:"100"`

	// --- XP ---
	XPMinPerMessage   int     `envconfig:"XP_MIN_PER_MESSAGE" default:"5"`
	XPMaxPerMessage   int     `envconfig:"XP_MAX_PER_MESSAGE" default:"15"`
	XPWeeklyBonus     float64 `envconfig:"XP_WEEKLY_BONUS" default:"200"`
	XPWeeklyThreshold int     `envconfig:"XP_WEEKLY_THRESHOLD" default:"500"`

	// --- VIP posts ---
	VIPDailyPostLimit int `envconfig:"VIP_DAILY_POST_LIMIT" default:"3"`

	// --- Moderation ---
	BannedWordsRaw string   `envconfig:"MODERATION_BANNED_WORDS" default:""`
	BannedWords    []string `envconfig:"-"`
	// Emoji→role table for the verification message, "emoji:roleID,...".
	ReactionRolesRaw string            `envconfig:"REACTION_ROLE_MAP" default:""`
	ReactionRoles    map[string]string `envconfig:"-"`
	VerifyChannelID  string            `envconfig:"VERIFY_CHANNEL_ID" default:""`
	VerifyMessageID  string            `envconfig:"VERIFY_MESSAGE_ID" default:""`

	// --- Channels ---
	AnnouncementChannelID     string `envconfig:"CHANNEL_ANNOUNCEMENTS" default:""`
	TaskSubmitChannelID       string `envconfig:"CHANNEL_TASK_SUBMIT" default:""`
	ModTaskReviewChannelID    string `envconfig:"CHANNEL_MOD_TASK_REVIEW" default:""`
	QuestBoardChannelID       string `envconfig:"CHANNEL_QUEST_BOARD" default:""`
	QuestSubmitChannelID      string `envconfig:"CHANNEL_QUEST_SUBMIT" default:""`
	ModQuestReviewChannelID   string `envconfig:"CHANNEL_MOD_QUEST_REVIEW" default:""`
	PayoutRequestChannelID    string `envconfig:"CHANNEL_PAYOUT_REQUEST" default:""`
	ModPaymentReviewChannelID string `envconfig:"CHANNEL_MOD_PAYMENT_REVIEW" default:""`
	MysteryBoxChannelID       string `envconfig:"CHANNEL_MYSTERYBOX" default:""`
	ReferralChannelID         string `envconfig:"CHANNEL_REFERRAL" default:""`
	LeaderboardChannelID      string `envconfig:"CHANNEL_LEADERBOARD" default:""`
	EconomyStatusChannelID    string `envconfig:"CHANNEL_ECONOMY_STATUS" default:""`
	SupportChannelID          string `envconfig:"CHANNEL_SUPPORT" default:""`
	TicketsCategoryID         string `envconfig:"CHANNEL_TICKETS_CATEGORY" default:""`
	ArchivedTicketsCategoryID string `envconfig:"CHANNEL_ARCHIVED_TICKETS_CATEGORY" default:""`
	CommandLogChannelID       string `envconfig:"CHANNEL_COMMAND_LOG" default:""`
	EngagementChannelID       string `envconfig:"CHANNEL_ENGAGEMENT" default:""`
	CheckInChannelID          string `envconfig:"CHANNEL_CHECKIN" default:""`

	// --- Roles ---
	AdminRoleID    string `envconfig:"ROLE_ADMIN" default:""`
	ModRoleID      string `envconfig:"ROLE_MOD" default:""`
	VerifiedRoleID string `envconfig:"ROLE_VERIFIED" default:""`
	VIPRoleID      string `envconfig:"ROLE_VIP" default:""`

	// --- Rate limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature flags ---
	FeatureMysteryBoxEnabled bool `envconfig:"FEATURE_MYSTERYBOX_ENABLED" default:"true"`
	FeatureQuestsEnabled     bool `envconfig:"FEATURE_QUESTS_ENABLED" default:"true"`
	FeatureTicketsEnabled    bool `envconfig:"FEATURE_TICKETS_ENABLED" default:"true"`
	FeatureXPEnabled         bool `envconfig:"FEATURE_XP_ENABLED" default:"true"`
}

// WeightedReward is one row of the mystery-box reward table. Weights are
// relative, not percentages; the drawing routine normalizes them.
type WeightedReward struct {
	Value  float64
	Weight int
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate checks cross-field constraints envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.TotalSupply <= 0 {
		return fmt.Errorf("ECONOMY_TOTAL_SUPPLY must be > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.MinReactionPoints <= 0 || c.MaxReactionPoints < c.MinReactionPoints {
		return fmt.Errorf("invalid REACTION_MIN_POINTS/REACTION_MAX_POINTS")
	}
	if c.MysteryBoxCost <= 0 {
		return fmt.Errorf("MYSTERYBOX_COST must be > 0")
	}
	if len(c.MysteryBoxRewards) == 0 {
		return fmt.Errorf("MYSTERYBOX_REWARDS must not be empty")
	}
	for _, r := range c.MysteryBoxRewards {
		if r.Weight <= 0 || r.Value < 0 {
			return fmt.Errorf("bad mystery box reward row %v:%v", r.Value, r.Weight)
		}
	}
	if c.MysteryBoxMaxPerDay <= 0 {
		return fmt.Errorf("MYSTERYBOX_MAX_PER_24H must be > 0")
	}
	if c.PayoutFeePercent < 0 || c.PayoutFeePercent >= 100 {
		return fmt.Errorf("PAYOUT_FEE_PERCENT out of range")
	}
	if c.PayoutConfirmation <= 0 {
		return fmt.Errorf("PAYOUT_CONFIRMATION_TIMEOUT must be > 0")
	}
	if c.XPMinPerMessage <= 0 || c.XPMaxPerMessage < c.XPMinPerMessage {
		return fmt.Errorf("invalid XP_MIN_PER_MESSAGE/XP_MAX_PER_MESSAGE")
	}
	return nil
}

// Load reads environment variables and fills the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.ApprovedExchanges = parseCSV(cfg.ApprovedExchangesRaw)
	cfg.ReactionChannels = parseCSV(cfg.ReactionChannelsRaw)
	cfg.BannedWords = parseCSV(cfg.BannedWordsRaw)

	rewards, err := parseRewardTable(cfg.MysteryBoxRewardsRaw)
	if err != nil {
		return nil, fmt.Errorf("MYSTERYBOX_REWARDS parse: %w", err)
	}
	cfg.MysteryBoxRewards = rewards

	if cfg.ReferrerPointsPerRole, err = parseFloatTable(cfg.ReferrerPointsRaw); err != nil {
		return nil, fmt.Errorf("REFERRAL_REFERRER_POINTS parse: %w", err)
	}
	if cfg.RefereePointsPerRole, err = parseFloatTable(cfg.RefereePointsRaw); err != nil {
		return nil, fmt.Errorf("REFERRAL_REFEREE_POINTS parse: %w", err)
	}
	if cfg.EngagementPoints, err = parseFloatTable(cfg.EngagementPointsRaw); err != nil {
		return nil, fmt.Errorf("TASK_ENGAGEMENT_POINTS parse: %w", err)
	}
	if cfg.RoleMultipliers, err = parseFloatTable(cfg.RoleMultipliersRaw); err != nil {
		return nil, fmt.Errorf("TASK_ROLE_MULTIPLIERS parse: %w", err)
	}
	if cfg.ReactionRoles, err = parseStringTable(cfg.ReactionRolesRaw); err != nil {
		return nil, fmt.Errorf("REACTION_ROLE_MAP parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// parseFloatTable parses "key:value,key:value" into a map.
func parseFloatTable(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("bad pair %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value in %q: %w", pair, err)
		}
		out[strings.TrimSpace(key)] = f
	}
	return out, nil
}

// parseStringTable parses "key:value,key:value" into a string map.
func parseStringTable(s string) (map[string]string, error) {
	out := make(map[string]string)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("bad pair %q", pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out, nil
}

// parseRewardTable parses "value:weight,value:weight" preserving order.
func parseRewardTable(s string) ([]WeightedReward, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]WeightedReward, 0, len(parts))
	for _, pair := range parts {
		valStr, weightStr, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("bad pair %q", pair)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
		if err != nil {
			return nil, fmt.Errorf("bad reward value in %q: %w", pair, err)
		}
		weight, err := strconv.Atoi(strings.TrimSpace(weightStr))
		if err != nil {
			return nil, fmt.Errorf("bad weight in %q: %w", pair, err)
		}
		out = append(out, WeightedReward{Value: val, Weight: weight})
	}
	return out, nil
}
