package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/RyanBlaney/sonido-emotion/inference"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status            string   `json:"status"`
	ModelLoaded       bool     `json:"model_loaded"`
	SupportedEmotions []string `json:"supported_emotions"`
}

type predictRequest struct {
	AudioData *string `json:"audioData"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:            "healthy",
		ModelLoaded:       s.runtime != nil,
		SupportedEmotions: []string{},
	}
	if s.runtime != nil {
		resp.SupportedEmotions = s.runtime.Emotions()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredict(c echo.Context) error {
	var req predictRequest
	if err := c.Bind(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing audioData"})
	}
	if req.AudioData == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing audioData"})
	}

	if s.runtime == nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: inference.ErrModelNotLoaded.Error()})
	}

	pred, err := s.runtime.PredictBase64(c.Request().Context(), *req.AudioData)
	if err != nil {
		s.logger.Error(err, "Error in /predict", logging.Fields{
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, pred)
}
