package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// Paginated wraps a list payload with its paging envelope.
func Paginated(c *gin.Context, statusCode int, items interface{}, total int64, page, perPage int) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
