package server

import (
	"encoding/csv"
	"io"

	"github.com/xuri/excelize/v2"

	"sjsage522/purchasewatcher/internal/purchase"
)

var exportHeader = []string{"Product Name", "Product ID", "Customer", "Date", "Time"}

func exportRow(p purchase.Purchase) []string {
	return []string{p.ProductName, p.ProductID, p.CustomerLocation, p.PurchaseDate, p.PurchaseTime}
}

func writeCSV(w io.Writer, purchases []purchase.Purchase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range purchases {
		if err := cw.Write(exportRow(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, purchases []purchase.Purchase) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Purchases"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	rows := [][]string{exportHeader}
	for _, p := range purchases {
		rows = append(rows, exportRow(p))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
