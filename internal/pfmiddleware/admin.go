package pfmiddleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-gonic/gin"
)

const (
	bearerPrefix = "Bearer "
	// au delà, le token n'est pas passé à argon2
	maxTokenLength = 256
)

var compareSecret = argon2.CompareHashAndPassword

// AdminRequired vérifie le secret partagé passé en bearer contre son hash argon2.
// Sans hash configuré l'accès est refusé avec une erreur de configuration.
// La requête est arrêtée avant tout handler, donc avant toute lecture en base.
// Une fois le secret validé, son sha256 est gardé en mémoire et les requêtes
// suivantes portant le même token ne repassent pas par argon2.
func AdminRequired(hash string, unauthorizedMessage string) gin.HandlerFunc {
	var verified atomic.Pointer[[sha256.Size]byte]

	return func(c *gin.Context) {
		if hash == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Admin access is not configured",
			})
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMessage})
			return
		}
		token := strings.TrimPrefix(header, bearerPrefix)
		if token == "" || len(token) > maxTokenLength {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMessage})
			return
		}

		digest := sha256.Sum256([]byte(token))
		if known := verified.Load(); known != nil && subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
			c.Next()
			return
		}

		if compareSecret([]byte(hash), []byte(token)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMessage})
			return
		}
		verified.Store(&digest)

		c.Next()
	}
}
