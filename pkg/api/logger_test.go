package api

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestStatusLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, statusLevel(fiber.StatusOK))
	assert.Equal(t, zerolog.InfoLevel, statusLevel(fiber.StatusNoContent))
	assert.Equal(t, zerolog.WarnLevel, statusLevel(fiber.StatusNotFound))
	assert.Equal(t, zerolog.WarnLevel, statusLevel(fiber.StatusPreconditionFailed))
	assert.Equal(t, zerolog.ErrorLevel, statusLevel(fiber.StatusInternalServerError))
}
