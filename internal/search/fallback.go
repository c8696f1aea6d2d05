package search

import "studybuddy/internal/models"

var fallbackWeb = []models.SearchResult{
	{
		Title:       "Effective Study Techniques",
		Link:        "https://www.edx.org/learn/studying",
		Description: "Learn proven study techniques and strategies to improve your academic performance.",
		Position:    1,
	},
	{
		Title:       "Student Success Guide",
		Link:        "https://www.coursera.org/student-success",
		Description: "Comprehensive guide to academic success and effective learning strategies.",
		Position:    2,
	},
	{
		Title:       "Time Management for Students",
		Link:        "https://www.mindtools.com/time-management",
		Description: "Master time management skills to balance your studies and personal life.",
		Position:    3,
	},
}

var fallbackImages = []models.ImageResult{
	{
		Title:        "Modern Study Space",
		ImageURL:     "https://images.unsplash.com/photo-1497633762265-9d179a990aa6",
		ThumbnailURL: "https://images.unsplash.com/photo-1497633762265-9d179a990aa6?w=200",
		Source:       "Unsplash",
		Width:        1920,
		Height:       1280,
	},
	{
		Title:        "Library Study Area",
		ImageURL:     "https://images.unsplash.com/photo-1541829070764-84a7d30dd3f3",
		ThumbnailURL: "https://images.unsplash.com/photo-1541829070764-84a7d30dd3f3?w=200",
		Source:       "Unsplash",
		Width:        1920,
		Height:       1280,
	},
	{
		Title:        "Student Workspace",
		ImageURL:     "https://images.unsplash.com/photo-1498243691581-b145c3f54a5a",
		ThumbnailURL: "https://images.unsplash.com/photo-1498243691581-b145c3f54a5a?w=200",
		Source:       "Unsplash",
		Width:        1920,
		Height:       1280,
	},
}

// Fallback liefert eine Kopie des festen Ersatz-Ergebnissatzes für den Typ
func Fallback(typ Type) models.SearchResponse {
	if typ == TypeImage {
		return models.SearchResponse{
			Type:         string(TypeImage),
			Images:       append([]models.ImageResult(nil), fallbackImages...),
			TotalResults: len(fallbackImages),
			Fallback:     true,
		}
	}
	return models.SearchResponse{
		Type:         string(TypeWeb),
		Results:      append([]models.SearchResult(nil), fallbackWeb...),
		TotalResults: len(fallbackWeb),
		Fallback:     true,
	}
}
