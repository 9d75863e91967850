package pfanalytics

import "time"

// PageView représente une vue de page, une ligne par chargement suivi
type PageView struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	PagePath     string    `gorm:"index;not null" json:"page_path"`
	Referrer     *string   `json:"referrer"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	Country      *string   `gorm:"index;size:128" json:"country"`
	City         *string   `gorm:"size:128" json:"city"`
	DeviceType   string    `gorm:"index;size:16" json:"device_type"`
	Browser      string    `gorm:"size:16" json:"browser"`
	OS           string    `gorm:"column:os;size:16" json:"os"`
	ScreenWidth  *int      `json:"screen_width"`
	ScreenHeight *int      `json:"screen_height"`
	Language     *string   `gorm:"size:35" json:"language"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// Visitor agrège les visites d'un visitor_id, mis à jour par upsert
type Visitor struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	VisitorID  string    `gorm:"uniqueIndex;size:64;not null" json:"visitor_id"`
	IPAddress  string    `gorm:"size:64" json:"ip_address"`
	Country    *string   `gorm:"size:128" json:"country"`
	City       *string   `gorm:"size:128" json:"city"`
	UserAgent  string    `json:"user_agent"`
	DeviceType string    `gorm:"size:16" json:"device_type"`
	Browser    string    `gorm:"size:16" json:"browser"`
	OS         string    `gorm:"column:os;size:16" json:"os"`
	FirstVisit time.Time `json:"first_visit"`
	LastVisit  time.Time `gorm:"index" json:"last_visit"`
	VisitCount int64     `gorm:"not null;default:1" json:"visit_count"`
}

func (PageView) TableName() string {
	return "page_views"
}

func (Visitor) TableName() string {
	return "visitors"
}

// Event est la vue de page reçue du tracker, enrichie des entêtes de la requête
type Event struct {
	PagePath     string
	Referrer     *string
	ScreenWidth  *int
	ScreenHeight *int
	Language     *string
	VisitorID    string
	UserAgent    string
	IPAddress    string
}
